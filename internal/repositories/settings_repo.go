package repositories

import (
	"context"
	"fmt"

	"github.com/calebmoore/vaultguard/internal/database"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// SettingsRepository reads the flat key/value settings store that feeds
// threat-detection policy
type SettingsRepository struct {
	db *database.DB
}

// NewSettingsRepository creates a new SettingsRepository
func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// ListByPrefix returns settings whose key starts with the prefix. With a
// nil companyID only global rows are returned; with a companyID both
// global rows and that tenant's overrides are returned, overrides last so
// callers can merge in order.
func (r *SettingsRepository) ListByPrefix(ctx context.Context, companyID *uuid.UUID, prefix string) ([]models.Setting, error) {
	query := `
		SELECT key, value, company_id, updated_at
		FROM settings
		WHERE key LIKE $1 || '%'
		  AND (company_id IS NULL OR company_id = $2)
		ORDER BY company_id NULLS FIRST, key
	`

	rows, err := r.db.Pool.Query(ctx, query, prefix, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make([]models.Setting, 0)
	for rows.Next() {
		var s models.Setting
		if err := rows.Scan(&s.Key, &s.Value, &s.CompanyID, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings rows: %w", err)
	}

	return settings, nil
}
