package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// ThreatEventRepository is the admin query surface over recorded events
type ThreatEventRepository interface {
	List(ctx context.Context, filter models.ThreatEventFilter, limit, offset int) ([]*models.ThreatEvent, error)
	Count(ctx context.Context, filter models.ThreatEventFilter) (int64, error)
	Resolve(ctx context.Context, id uuid.UUID) error
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ThreatEventService backs the security dashboard: listing recorded
// threats and the operator resolution workflow
type ThreatEventService struct {
	repo   ThreatEventRepository
	logger *slog.Logger
}

// NewThreatEventService creates a new ThreatEventService
func NewThreatEventService(repo ThreatEventRepository, logger *slog.Logger) *ThreatEventService {
	return &ThreatEventService{repo: repo, logger: logger}
}

// List returns matching events and the total count for pagination
func (s *ThreatEventService) List(ctx context.Context, filter models.ThreatEventFilter, limit, offset int) ([]*models.ThreatEvent, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	events, err := s.repo.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list threat events: %w", err)
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count threat events: %w", err)
	}

	return events, total, nil
}

// Resolve marks an event as handled. Returns ErrNotFound for unknown or
// already-resolved IDs.
func (s *ThreatEventService) Resolve(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Resolve(ctx, id); err != nil {
		return err
	}

	s.logger.Info("threat event resolved", slog.String("event_id", id.String()))
	return nil
}
