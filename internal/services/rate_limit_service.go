package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	pkglogger "github.com/calebmoore/vaultguard/pkg/logger"
	"github.com/google/uuid"
)

// RateLimitStore is the counter store behind the rate limiter. The
// increment must be a single atomic conditional operation; a read followed
// by a write would let concurrent requests for the same key both slip past
// the limit.
type RateLimitStore interface {
	IncrementWindow(ctx context.Context, key models.WindowKey, windowEnd time.Time, max int) (count int, admitted bool, err error)
	DeleteExpiredWindows(ctx context.Context) (int64, error)
}

// RateLimitResult is the admission decision for one request
type RateLimitResult struct {
	Exceeded  bool
	Remaining int
	ResetAt   time.Time
}

// RateLimitService enforces per-(identifier, type, action) request caps
// bounded to fixed time windows
type RateLimitService struct {
	store    RateLimitStore
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(store RateLimitStore, recorder Recorder, logger *slog.Logger) *RateLimitService {
	return &RateLimitService{
		store:    store,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// CheckRateLimit admits or rejects a request under the given policy.
// Storage failures propagate to the caller: treating them as "not
// exceeded" would turn an outage into a security bypass.
func (s *RateLimitService) CheckRateLimit(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, policy RateLimitPolicy, companyID *uuid.UUID) (*RateLimitResult, error) {
	if !policy.Enabled {
		return &RateLimitResult{Exceeded: false, Remaining: policy.MaxRequests}, nil
	}

	window := time.Duration(policy.WindowMinutes) * time.Minute
	windowStart := s.now().Truncate(window)
	windowEnd := windowStart.Add(window)

	key := models.WindowKey{
		Identifier:     identifier,
		IdentifierType: identifierType,
		Action:         action,
		WindowStart:    windowStart,
		CompanyID:      companyID,
	}

	count, admitted, err := s.store.IncrementWindow(ctx, key, windowEnd, policy.MaxRequests)
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	if !admitted {
		s.logger.Warn("rate limit exceeded",
			slog.String("identifier", pkglogger.SanitizedIdentifier(identifier, string(identifierType))),
			slog.String("identifier_type", string(identifierType)),
			slog.String("action", action),
			slog.Int("max_requests", policy.MaxRequests),
		)

		s.recorder.Record(ctx, ThreatFinding{
			ThreatType: models.ThreatTypeRateLimitExceeded,
			Severity:   models.SeverityMedium,
			CompanyID:  companyID,
			IPAddress:  ipPointer(identifier, identifierType),
			Details: models.ThreatDetails{
				"identifier":      identifier,
				"identifier_type": string(identifierType),
				"action":          action,
				"max_requests":    policy.MaxRequests,
				"window_minutes":  policy.WindowMinutes,
			},
		})

		return &RateLimitResult{Exceeded: true, Remaining: 0, ResetAt: windowEnd}, nil
	}

	// First request of a fresh window doubles as the housekeeping trigger:
	// purge globally expired windows off the decision path
	if count == 1 {
		s.purgeExpired(ctx)
	}

	return &RateLimitResult{
		Exceeded:  false,
		Remaining: policy.MaxRequests - count,
		ResetAt:   windowEnd,
	}, nil
}

// purgeExpired removes closed windows in the background. Best-effort: the
// janitor covers anything this misses.
func (s *RateLimitService) purgeExpired(ctx context.Context) {
	purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	go func() {
		defer cancel()
		if _, err := s.store.DeleteExpiredWindows(purgeCtx); err != nil {
			s.logger.Error("inline window purge failed", slog.Any("error", err))
		}
	}()
}

func ipPointer(identifier string, identifierType models.IdentifierType) *string {
	if identifierType != models.IdentifierTypeIP {
		return nil
	}
	return &identifier
}
