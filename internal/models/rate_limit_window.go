package models

import (
	"time"

	"github.com/google/uuid"
)

// IdentifierType distinguishes what a rate-limit identifier refers to
type IdentifierType string

const (
	IdentifierTypeIP   IdentifierType = "IP"
	IdentifierTypeUser IdentifierType = "USER"
)

// Actions gated by the engine
const (
	ActionLogin         = "LOGIN"
	ActionPasswordReset = "PASSWORD_RESET"
	ActionAPIRequest    = "API_REQUEST"
)

// WindowKey is the identity tuple of a rate-limit window. At most one
// counter row exists per key.
type WindowKey struct {
	Identifier     string
	IdentifierType IdentifierType
	Action         string
	WindowStart    time.Time
	CompanyID      *uuid.UUID
}

// RateLimitWindow is a persisted counter bounded to a time window
type RateLimitWindow struct {
	ID             uuid.UUID      `db:"id"`
	Identifier     string         `db:"identifier"`
	IdentifierType IdentifierType `db:"identifier_type"`
	Action         string         `db:"action"`
	Count          int            `db:"count"`
	WindowStart    time.Time      `db:"window_start"`
	WindowEnd      time.Time      `db:"window_end"`
	CompanyID      *uuid.UUID     `db:"company_id"`
}
