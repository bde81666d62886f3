package services_test

import (
	"context"
	"sync"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	"github.com/google/uuid"
)

// mockRecorder captures the findings detectors emit
type mockRecorder struct {
	mu       sync.Mutex
	findings []services.ThreatFinding
}

func (m *mockRecorder) Record(ctx context.Context, finding services.ThreatFinding) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings = append(m.findings, finding)
}

func (m *mockRecorder) Findings() []services.ThreatFinding {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]services.ThreatFinding, len(m.findings))
	copy(out, m.findings)
	return out
}

// mockRateLimitStore implements RateLimitStore with the same
// conditional-increment contract as the real stores
type mockRateLimitStore struct {
	mu      sync.Mutex
	counts  map[string]int
	purges  int
	failErr error
}

func newMockRateLimitStore() *mockRateLimitStore {
	return &mockRateLimitStore{counts: make(map[string]int)}
}

func windowMapKey(key models.WindowKey) string {
	return key.Identifier + "|" + string(key.IdentifierType) + "|" + key.Action + "|" + key.WindowStart.UTC().Format(time.RFC3339)
}

func (m *mockRateLimitStore) IncrementWindow(ctx context.Context, key models.WindowKey, windowEnd time.Time, max int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, false, m.failErr
	}
	k := windowMapKey(key)
	if m.counts[k] >= max {
		return max, false, nil
	}
	m.counts[k]++
	return m.counts[k], true, nil
}

func (m *mockRateLimitStore) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purges++
	return 0, nil
}

func (m *mockRateLimitStore) Purges() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.purges
}

// mockSettingsRepository implements SettingsRepository for testing
type mockSettingsRepository struct {
	ListByPrefixFunc func(ctx context.Context, companyID *uuid.UUID, prefix string) ([]models.Setting, error)
}

func (m *mockSettingsRepository) ListByPrefix(ctx context.Context, companyID *uuid.UUID, prefix string) ([]models.Setting, error) {
	if m.ListByPrefixFunc != nil {
		return m.ListByPrefixFunc(ctx, companyID, prefix)
	}
	return []models.Setting{}, nil
}

// mockAuditReader implements FailedAttemptCounter, FailureCounter and
// LoginHistoryReader for testing
type mockAuditReader struct {
	CountUserActionsFunc       func(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int, error)
	CountIdentifierActionsFunc func(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, since time.Time) (int, error)
	RecentSuccessfulLoginsFunc func(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error)
}

func (m *mockAuditReader) CountUserActions(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int, error) {
	if m.CountUserActionsFunc != nil {
		return m.CountUserActionsFunc(ctx, userID, action, since)
	}
	return 0, nil
}

func (m *mockAuditReader) CountIdentifierActions(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, since time.Time) (int, error) {
	if m.CountIdentifierActionsFunc != nil {
		return m.CountIdentifierActionsFunc(ctx, identifier, identifierType, action, since)
	}
	return 0, nil
}

func (m *mockAuditReader) RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
	if m.RecentSuccessfulLoginsFunc != nil {
		return m.RecentSuccessfulLoginsFunc(ctx, userID, since, limit)
	}
	return []*models.AuditLog{}, nil
}

// mockThreatEventWriter implements ThreatEventWriter for testing
type mockThreatEventWriter struct {
	mu      sync.Mutex
	created []*models.ThreatEvent
	failErr error
}

func (m *mockThreatEventWriter) Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}
	m.created = append(m.created, event)
	return event, nil
}

func (m *mockThreatEventWriter) Created() []*models.ThreatEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.ThreatEvent, len(m.created))
	copy(out, m.created)
	return out
}

// mockAuditSink implements AuditSink for testing
type mockAuditSink struct {
	mu      sync.Mutex
	entries []*models.AuditLog
	failErr error
}

func (m *mockAuditSink) Record(ctx context.Context, entry *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockAuditSink) Entries() []*models.AuditLog {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.AuditLog, len(m.entries))
	copy(out, m.entries)
	return out
}
