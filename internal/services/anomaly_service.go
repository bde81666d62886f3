package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/calebmoore/vaultguard/internal/geoip"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/useragent"
	"github.com/google/uuid"
)

// Quiet hours: logins in [02:00, 06:00) local server time are flagged when
// the user has no history of logging in then
const (
	quietHourStart = 2
	quietHourEnd   = 6
)

const (
	reasonUnusualLocation = "Unusual location detected"
	reasonUnusualTime     = "Unusual login time detected"
	reasonUnusualDevice   = "Unusual device detected"
)

// LoginHistoryReader loads a user's recent successful logins from the
// audit trail
type LoginHistoryReader interface {
	RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error)
}

// AnomalyResult is the advisory outcome of the context heuristics
type AnomalyResult struct {
	IsAnomaly bool
	Reasons   []string
	Severity  models.Severity
}

// AnomalyService compares a login's context against the user's last 10
// successful logins within 30 days. Its result is advisory: callers may
// step up verification but the primary decision does not wait on it.
type AnomalyService struct {
	history  LoginHistoryReader
	geo      geoip.Resolver
	parser   useragent.Parser
	recorder Recorder
	logger   *slog.Logger

	historyWindow time.Duration
	historyLimit  int
	now           func() time.Time
}

// NewAnomalyService creates a new AnomalyService
func NewAnomalyService(history LoginHistoryReader, geo geoip.Resolver, parser useragent.Parser, recorder Recorder, logger *slog.Logger) *AnomalyService {
	return &AnomalyService{
		history:       history,
		geo:           geo,
		parser:        parser,
		recorder:      recorder,
		logger:        logger,
		historyWindow: 30 * 24 * time.Hour,
		historyLimit:  10,
		now:           time.Now,
	}
}

// DetectAnomalies evaluates the enabled heuristics for a login. A user
// with no history is never anomalous. History load failures propagate.
func (s *AnomalyService) DetectAnomalies(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, policy AnomalyPolicy, companyID *uuid.UUID) (*AnomalyResult, error) {
	result := &AnomalyResult{Severity: models.SeverityLow}

	if !policy.Enabled {
		return result, nil
	}

	now := s.now()
	since := now.Add(-s.historyWindow)

	logins, err := s.history.RecentSuccessfulLogins(ctx, userID, since, s.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("anomaly detection failed: %w", err)
	}

	// First login is never anomalous
	if len(logins) == 0 {
		return result, nil
	}

	if policy.CheckUnusualLocation {
		flagged, err := s.checkLocation(ipAddress, logins)
		if err != nil {
			return nil, fmt.Errorf("anomaly detection failed: %w", err)
		}
		if flagged {
			result.Reasons = append(result.Reasons, reasonUnusualLocation)
			result.Severity = result.Severity.Escalate(models.SeverityHigh)
		}
	}

	if policy.CheckUnusualTime && s.checkTime(now, logins) {
		result.Reasons = append(result.Reasons, reasonUnusualTime)
		result.Severity = result.Severity.Escalate(models.SeverityMedium)
	}

	if policy.CheckUnusualDevice && s.checkDevice(userAgent, logins) {
		result.Reasons = append(result.Reasons, reasonUnusualDevice)
		result.Severity = result.Severity.Escalate(models.SeverityMedium)
	}

	result.IsAnomaly = len(result.Reasons) > 0

	if result.IsAnomaly {
		s.logger.Warn("login anomaly detected",
			slog.String("user_id", userID.String()),
			slog.String("ip_address", ipAddress),
			slog.String("reasons", strings.Join(result.Reasons, "; ")),
			slog.String("severity", string(result.Severity)),
		)

		s.recorder.Record(ctx, ThreatFinding{
			ThreatType: models.ThreatTypeAnomalyDetected,
			Severity:   result.Severity,
			UserID:     &userID,
			CompanyID:  companyID,
			IPAddress:  &ipAddress,
			UserAgent:  &userAgent,
			Details: models.ThreatDetails{
				"reasons": strings.Join(result.Reasons, "; "),
			},
		})
	}

	return result, nil
}

// checkLocation flags the login when history resolves to a non-empty set
// of countries that does not contain the current one. Unknown lookups
// (private ranges, missing database entries) contribute nothing.
func (s *AnomalyService) checkLocation(ipAddress string, logins []*models.AuditLog) (bool, error) {
	current, err := s.geo.Resolve(ipAddress)
	if err != nil {
		return false, err
	}
	if current == nil {
		return false, nil
	}

	seen := make(map[string]struct{})
	for _, login := range logins {
		if login.IPAddress == nil {
			continue
		}
		loc, err := s.geo.Resolve(*login.IPAddress)
		if err != nil {
			return false, err
		}
		if loc != nil {
			seen[loc.CountryCode] = struct{}{}
		}
	}

	if len(seen) == 0 {
		return false, nil
	}

	_, known := seen[current.CountryCode]
	return !known, nil
}

func (s *AnomalyService) checkTime(now time.Time, logins []*models.AuditLog) bool {
	if !inQuietHours(now.Hour()) {
		return false
	}
	for _, login := range logins {
		if inQuietHours(login.CreatedAt.Hour()) {
			return false
		}
	}
	return true
}

func (s *AnomalyService) checkDevice(userAgent string, logins []*models.AuditLog) bool {
	current := s.parser.Parse(userAgent).Fingerprint()

	for _, login := range logins {
		if login.UserAgent == nil {
			continue
		}
		if s.parser.Parse(*login.UserAgent).Fingerprint() == current {
			return false
		}
	}
	return true
}

func inQuietHours(hour int) bool {
	return hour >= quietHourStart && hour < quietHourEnd
}
