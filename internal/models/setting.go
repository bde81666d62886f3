package models

import (
	"time"

	"github.com/google/uuid"
)

// Setting is one entry in the flat key/value settings store. Values are
// stored as strings; consumers apply their own typed defaults.
type Setting struct {
	Key       string     `db:"key"`
	Value     string     `db:"value"`
	CompanyID *uuid.UUID `db:"company_id"`
	UpdatedAt time.Time  `db:"updated_at"`
}
