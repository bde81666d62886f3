package background

import (
	"context"
	"log/slog"
	"time"
)

// resolvedRetention is how long resolved threat events are kept before the
// janitor purges them. Unresolved events are retained indefinitely.
const resolvedRetention = 30 * 24 * time.Hour

// ThreatEventPurger deletes resolved threat events past retention
type ThreatEventPurger interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// WindowPurger deletes rate-limit windows that have already closed
type WindowPurger interface {
	DeleteExpiredWindows(ctx context.Context) (int64, error)
}

// RetentionJanitor periodically purges resolved threat events and expired
// rate-limit windows. Idempotent; failures are logged, never propagated.
type RetentionJanitor struct {
	events   ThreatEventPurger
	windows  WindowPurger
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewRetentionJanitor creates a new RetentionJanitor
func NewRetentionJanitor(events ThreatEventPurger, windows WindowPurger, logger *slog.Logger, interval time.Duration) *RetentionJanitor {
	return &RetentionJanitor{
		events:   events,
		windows:  windows,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (j *RetentionJanitor) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	// Run immediately on startup
	j.CleanupThreatData(ctx)

	for {
		select {
		case <-ticker.C:
			j.CleanupThreatData(ctx)
		case <-j.stopCh:
			j.logger.Info("retention janitor stopped")
			return
		case <-ctx.Done():
			j.logger.Info("retention janitor context cancelled")
			return
		}
	}
}

// CleanupThreatData runs one purge pass
func (j *RetentionJanitor) CleanupThreatData(ctx context.Context) {
	cleanupCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-resolvedRetention)

	eventsDeleted, err := j.events.DeleteResolvedBefore(cleanupCtx, cutoff)
	if err != nil {
		j.logger.Error("failed to purge resolved threat events", slog.Any("error", err))
	}

	windowsDeleted, err := j.windows.DeleteExpiredWindows(cleanupCtx)
	if err != nil {
		j.logger.Error("failed to purge expired rate limit windows", slog.Any("error", err))
	}

	if eventsDeleted > 0 || windowsDeleted > 0 {
		j.logger.Info("threat data cleanup completed",
			slog.Int64("events_deleted", eventsDeleted),
			slog.Int64("windows_deleted", windowsDeleted),
		)
	}
}

// Stop signals the janitor to stop
func (j *RetentionJanitor) Stop() {
	close(j.stopCh)
}
