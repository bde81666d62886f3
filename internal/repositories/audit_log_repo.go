package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/calebmoore/vaultguard/internal/database"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// AuditLogRepository handles audit trail data access. The engine writes
// THREAT_* entries through it and reads the login entries that external
// auth handlers record.
type AuditLogRepository struct {
	db *database.DB
}

// NewAuditLogRepository creates a new AuditLogRepository
func NewAuditLogRepository(db *database.DB) *AuditLogRepository {
	return &AuditLogRepository{db: db}
}

// Record appends an entry to the audit trail
func (r *AuditLogRepository) Record(ctx context.Context, entry *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (action, resource, resource_id, status, user_id, company_id, ip_address, user_agent, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Pool.Exec(ctx, query,
		entry.Action, entry.Resource, entry.ResourceID, entry.Status,
		entry.UserID, entry.CompanyID, entry.IPAddress, entry.UserAgent, entry.Details,
	)
	if err != nil {
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	return nil
}

// CountUserActions returns how many entries with the given action a user
// accumulated since the cutoff
func (r *AuditLogRepository) CountUserActions(ctx context.Context, userID uuid.UUID, action string, since time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM audit_logs
		WHERE user_id = $1 AND action = $2 AND created_at >= $3
	`

	var count int
	err := r.db.Pool.QueryRow(ctx, query, userID, action, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count user audit actions: %w", err)
	}

	return count, nil
}

// CountIdentifierActions counts entries with the given action attributed to
// an identifier, matching on IP address or user ID depending on the
// identifier type
func (r *AuditLogRepository) CountIdentifierActions(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, since time.Time) (int, error) {
	var query string
	switch identifierType {
	case models.IdentifierTypeIP:
		query = `
			SELECT COUNT(*) FROM audit_logs
			WHERE ip_address = $1 AND action = $2 AND created_at >= $3
		`
	case models.IdentifierTypeUser:
		query = `
			SELECT COUNT(*) FROM audit_logs
			WHERE user_id::text = $1 AND action = $2 AND created_at >= $3
		`
	default:
		return 0, fmt.Errorf("unknown identifier type %q: %w", identifierType, models.ErrBadRequest)
	}

	var count int
	err := r.db.Pool.QueryRow(ctx, query, identifier, action, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count identifier audit actions: %w", err)
	}

	return count, nil
}

// RecentSuccessfulLogins returns the user's latest successful login entries
// since the cutoff, newest first
func (r *AuditLogRepository) RecentSuccessfulLogins(ctx context.Context, userID uuid.UUID, since time.Time, limit int) ([]*models.AuditLog, error) {
	query := `
		SELECT id, action, resource, resource_id, status, user_id, company_id,
		       ip_address, user_agent, details, created_at
		FROM audit_logs
		WHERE user_id = $1 AND action = $2 AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT $4
	`

	rows, err := r.db.Pool.Query(ctx, query, userID, models.AuditActionLoginSuccess, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query login history: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AuditLog, 0)
	for rows.Next() {
		var e models.AuditLog
		err := rows.Scan(
			&e.ID, &e.Action, &e.Resource, &e.ResourceID, &e.Status,
			&e.UserID, &e.CompanyID, &e.IPAddress, &e.UserAgent,
			&e.Details, &e.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}
