package background_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/calebmoore/vaultguard/internal/background"
	"github.com/stretchr/testify/assert"
)

type mockThreatEventPurger struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	failErr error
}

func (m *mockThreatEventPurger) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return 0, m.failErr
	}
	m.cutoffs = append(m.cutoffs, cutoff)
	return m.deleted, nil
}

type mockWindowPurger struct {
	mu      sync.Mutex
	calls   int
	deleted int64
	failErr error
}

func (m *mockWindowPurger) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.failErr != nil {
		return 0, m.failErr
	}
	return m.deleted, nil
}

func (m *mockWindowPurger) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func TestRetentionJanitorCleanupThreatData_PurgesBothStores(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventPurger{deleted: 3}
	windows := &mockWindowPurger{deleted: 7}

	janitor := background.NewRetentionJanitor(events, windows, logger, time.Hour)

	janitor.CleanupThreatData(context.Background())

	assert.Len(t, events.cutoffs, 1)
	// Resolved events are kept for 30 days
	assert.WithinDuration(t, time.Now().Add(-30*24*time.Hour), events.cutoffs[0], 2*time.Second)
	assert.Equal(t, 1, windows.Calls())
}

func TestRetentionJanitorCleanupThreatData_EventFailureStillPurgesWindows(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventPurger{failErr: errors.New("connection refused")}
	windows := &mockWindowPurger{}

	janitor := background.NewRetentionJanitor(events, windows, logger, time.Hour)

	janitor.CleanupThreatData(context.Background())

	assert.Equal(t, 1, windows.Calls())
}

func TestRetentionJanitorStart_RunsImmediatelyAndStops(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	events := &mockThreatEventPurger{}
	windows := &mockWindowPurger{}

	janitor := background.NewRetentionJanitor(events, windows, logger, time.Hour)

	done := make(chan struct{})
	go func() {
		defer close(done)
		janitor.Start(context.Background())
	}()

	assert.Eventually(t, func() bool {
		return windows.Calls() == 1
	}, time.Second, 10*time.Millisecond)

	janitor.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("janitor did not stop")
	}
}
