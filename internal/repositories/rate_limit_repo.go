package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calebmoore/vaultguard/internal/database"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/jackc/pgx/v5"
)

// RateLimitWindowRepository handles database operations for rate-limit
// counter windows
type RateLimitWindowRepository struct {
	db *database.DB
}

// NewRateLimitWindowRepository creates a new RateLimitWindowRepository
func NewRateLimitWindowRepository(db *database.DB) *RateLimitWindowRepository {
	return &RateLimitWindowRepository{db: db}
}

// IncrementWindow atomically creates or increments the counter row for the
// given identity tuple, admitting the request only while count < max. The
// upsert is a single conditional statement so two concurrent requests for
// the same key can never both read a stale count and slip past the limit.
// Returns the post-increment count and whether the request was admitted.
func (r *RateLimitWindowRepository) IncrementWindow(ctx context.Context, key models.WindowKey, windowEnd time.Time, max int) (int, bool, error) {
	query := `
		INSERT INTO rate_limit_windows (identifier, identifier_type, action, window_start, window_end, company_id, count)
		VALUES ($1, $2, $3, $4, $5, $6, 1)
		ON CONFLICT (identifier, identifier_type, action, window_start)
		DO UPDATE SET count = rate_limit_windows.count + 1
		WHERE rate_limit_windows.count < $7
		RETURNING count
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query,
		key.Identifier,
		key.IdentifierType,
		key.Action,
		key.WindowStart,
		windowEnd,
		key.CompanyID,
		max,
	).Scan(&count)

	if errors.Is(err, pgx.ErrNoRows) {
		// Conditional update declined: the window is already at max
		return max, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to increment rate limit window: %w", err)
	}

	return count, true, nil
}

// GetWindow returns the counter row for an identity tuple, or ErrNotFound
func (r *RateLimitWindowRepository) GetWindow(ctx context.Context, key models.WindowKey) (*models.RateLimitWindow, error) {
	query := `
		SELECT id, identifier, identifier_type, action, count, window_start, window_end, company_id
		FROM rate_limit_windows
		WHERE identifier = $1 AND identifier_type = $2 AND action = $3 AND window_start = $4
	`

	var w models.RateLimitWindow
	err := r.db.Pool.QueryRow(ctx, query,
		key.Identifier, key.IdentifierType, key.Action, key.WindowStart,
	).Scan(
		&w.ID, &w.Identifier, &w.IdentifierType, &w.Action,
		&w.Count, &w.WindowStart, &w.WindowEnd, &w.CompanyID,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	return &w, nil
}

// DeleteExpiredWindows removes counter rows whose window has already closed
func (r *RateLimitWindowRepository) DeleteExpiredWindows(ctx context.Context) (int64, error) {
	query := `DELETE FROM rate_limit_windows WHERE window_end < CURRENT_TIMESTAMP`

	result, err := r.db.Pool.Exec(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired rate limit windows: %w", err)
	}

	return result.RowsAffected(), nil
}
