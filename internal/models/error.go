package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("resource already exists")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")

	// Engine decision errors
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
	ErrAccountLocked     = errors.New("account is temporarily locked")
)
