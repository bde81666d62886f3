package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit entry statuses
const (
	AuditStatusSuccess = "SUCCESS"
	AuditStatusFailure = "FAILURE"
	AuditStatusWarning = "WARNING"
)

// Well-known audit actions the engine reads or writes
const (
	AuditActionLoginSuccess        = "LOGIN_SUCCESS"
	AuditActionLoginFailed         = "LOGIN_FAILED"
	AuditActionPasswordResetFailed = "PASSWORD_RESET_FAILED"
)

// Resource types referenced by engine-written audit entries
const (
	AuditResourceSecurity = "security"
)

// AuditLog is one entry in the durable audit trail. Login handlers write
// LOGIN_SUCCESS/LOGIN_FAILED entries; the engine reads those for
// brute-force, CAPTCHA and anomaly decisions and writes THREAT_* entries
// of its own.
type AuditLog struct {
	ID         uuid.UUID     `db:"id"`
	Action     string        `db:"action"`
	Resource   string        `db:"resource"`
	ResourceID *string       `db:"resource_id"`
	Status     string        `db:"status"`
	UserID     *uuid.UUID    `db:"user_id"`
	CompanyID  *uuid.UUID    `db:"company_id"`
	IPAddress  *string       `db:"ip_address"`
	UserAgent  *string       `db:"user_agent"`
	Details    AuditMetadata `db:"details"`
	CreatedAt  time.Time     `db:"created_at"`
}

// AuditMetadata holds additional context for audit entries
type AuditMetadata map[string]interface{}

// Scan implements sql.Scanner for JSONB
func (am *AuditMetadata) Scan(value interface{}) error {
	if value == nil {
		*am = make(AuditMetadata)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return ErrBadRequest
	}

	var m map[string]interface{}
	if err := json.Unmarshal(bytes, &m); err != nil {
		return err
	}
	*am = AuditMetadata(m)
	return nil
}

// Value implements driver.Valuer for JSONB
func (am AuditMetadata) Value() (driver.Value, error) {
	if am == nil {
		return nil, nil
	}
	return json.Marshal(am)
}
