package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// FailedAttemptCounter reads failed-authentication history from the audit
// trail
type FailedAttemptCounter interface {
	CountUserActions(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int, error)
}

// BruteForceResult is the lockout derivation for one user
type BruteForceResult struct {
	Locked            bool
	RemainingAttempts int
	UnlockAt          *time.Time
}

// BruteForceService derives lockout state from recent failed logins. The
// derivation is stateless: no lock flag is persisted, and the caller is
// responsible for denying authentication while Locked is true.
type BruteForceService struct {
	attempts FailedAttemptCounter
	recorder Recorder
	logger   *slog.Logger
}

// NewBruteForceService creates a new BruteForceService
func NewBruteForceService(attempts FailedAttemptCounter, recorder Recorder, logger *slog.Logger) *BruteForceService {
	return &BruteForceService{
		attempts: attempts,
		recorder: recorder,
		logger:   logger,
	}
}

// CheckBruteForce reports whether the user has exhausted their failed
// login budget within the policy window. Storage failures propagate.
func (s *BruteForceService) CheckBruteForce(ctx context.Context, userID uuid.UUID, policy BruteForcePolicy, companyID *uuid.UUID) (*BruteForceResult, error) {
	if !policy.Enabled {
		return &BruteForceResult{Locked: false, RemainingAttempts: policy.MaxAttempts}, nil
	}

	since := time.Now().Add(-time.Duration(policy.WindowMinutes) * time.Minute)

	count, err := s.attempts.CountUserActions(ctx, userID, models.AuditActionLoginFailed, since)
	if err != nil {
		return nil, fmt.Errorf("brute force check failed: %w", err)
	}

	if count >= policy.MaxAttempts {
		unlockAt := time.Now().Add(time.Duration(policy.LockoutDurationMinutes) * time.Minute)

		s.logger.Warn("account locked by brute force guard",
			slog.String("user_id", userID.String()),
			slog.Int("failed_attempts", count),
			slog.Time("unlock_at", unlockAt),
		)

		s.recorder.Record(ctx, ThreatFinding{
			ThreatType: models.ThreatTypeBruteForce,
			Severity:   models.SeverityHigh,
			UserID:     &userID,
			CompanyID:  companyID,
			Details: models.ThreatDetails{
				"failed_attempts": count,
				"max_attempts":    policy.MaxAttempts,
				"window_minutes":  policy.WindowMinutes,
				"unlock_at":       unlockAt.UTC().Format(time.RFC3339),
			},
		})

		return &BruteForceResult{Locked: true, RemainingAttempts: 0, UnlockAt: &unlockAt}, nil
	}

	return &BruteForceResult{
		Locked:            false,
		RemainingAttempts: policy.MaxAttempts - count,
	}, nil
}
