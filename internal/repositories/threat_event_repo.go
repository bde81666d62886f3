package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmoore/vaultguard/internal/database"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// ThreatEventRepository handles threat event data access
type ThreatEventRepository struct {
	db *database.DB
}

// NewThreatEventRepository creates a new ThreatEventRepository
func NewThreatEventRepository(db *database.DB) *ThreatEventRepository {
	return &ThreatEventRepository{db: db}
}

// scanThreatEventRow populates a ThreatEvent model from a database row
func scanThreatEventRow(row pgx.Row) (*models.ThreatEvent, error) {
	var e models.ThreatEvent

	err := row.Scan(
		&e.ID, &e.ThreatType, &e.Severity, &e.UserID, &e.CompanyID,
		&e.IPAddress, &e.UserAgent, &e.Details, &e.IsResolved,
		&e.ResolvedAt, &e.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &e, nil
}

// Create persists a new threat event
func (r *ThreatEventRepository) Create(ctx context.Context, event *models.ThreatEvent) (*models.ThreatEvent, error) {
	query := `
		INSERT INTO threat_events (threat_type, severity, user_id, company_id, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, threat_type, severity, user_id, company_id, ip_address, user_agent,
		          details, is_resolved, resolved_at, created_at
	`

	result, err := scanThreatEventRow(r.db.Pool.QueryRow(ctx, query,
		event.ThreatType, event.Severity, event.UserID, event.CompanyID,
		event.IPAddress, event.UserAgent, event.Details,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to create threat event: %w", err)
	}

	return result, nil
}

// List retrieves threat events matching the filter, newest first
func (r *ThreatEventRepository) List(ctx context.Context, filter models.ThreatEventFilter, limit, offset int) ([]*models.ThreatEvent, error) {
	query := `
		SELECT id, threat_type, severity, user_id, company_id, ip_address, user_agent,
		       details, is_resolved, resolved_at, created_at
		FROM threat_events
		WHERE ($1::text IS NULL OR threat_type = $1)
		  AND ($2::text IS NULL OR severity = $2)
		  AND ($3::boolean IS NULL OR is_resolved = $3)
		  AND ($4::uuid IS NULL OR company_id = $4)
		ORDER BY created_at DESC
		LIMIT $5 OFFSET $6
	`

	rows, err := r.db.Pool.Query(ctx, query,
		filter.ThreatType, filter.Severity, filter.Resolved, filter.CompanyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query threat events: %w", err)
	}
	defer rows.Close()

	events := make([]*models.ThreatEvent, 0)
	for rows.Next() {
		event, err := scanThreatEventRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan threat event: %w", err)
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating threat event rows: %w", err)
	}

	return events, nil
}

// Count returns the number of threat events matching the filter
func (r *ThreatEventRepository) Count(ctx context.Context, filter models.ThreatEventFilter) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM threat_events
		WHERE ($1::text IS NULL OR threat_type = $1)
		  AND ($2::text IS NULL OR severity = $2)
		  AND ($3::boolean IS NULL OR is_resolved = $3)
		  AND ($4::uuid IS NULL OR company_id = $4)
	`

	var count int64
	err := r.db.Pool.QueryRow(ctx, query,
		filter.ThreatType, filter.Severity, filter.Resolved, filter.CompanyID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count threat events: %w", err)
	}

	return count, nil
}

// Resolve marks a threat event as handled by an operator
func (r *ThreatEventRepository) Resolve(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE threat_events
		SET is_resolved = true, resolved_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND is_resolved = false
	`

	result, err := r.db.Pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to resolve threat event: %w", err)
	}

	if result.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteResolvedBefore purges resolved threat events whose resolution is
// older than the cutoff. Unresolved events are retained indefinitely.
func (r *ThreatEventRepository) DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	query := `DELETE FROM threat_events WHERE is_resolved = true AND resolved_at < $1`

	result, err := r.db.Pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge resolved threat events: %w", err)
	}

	return result.RowsAffected(), nil
}
