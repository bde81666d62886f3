package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// captchaLookback is the fixed trailing window for failure counting
const captchaLookback = time.Hour

// FailureCounter counts failed attempts attributed to an identifier
type FailureCounter interface {
	CountIdentifierActions(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, since time.Time) (int, error)
}

// CaptchaService decides when a CAPTCHA challenge must be interposed.
// Pure read: no side effects, no threat events.
type CaptchaService struct {
	failures FailureCounter
}

// NewCaptchaService creates a new CaptchaService
func NewCaptchaService(failures FailureCounter) *CaptchaService {
	return &CaptchaService{failures: failures}
}

// ShouldRequireCaptcha reports whether the identifier crossed the failure
// threshold for the action within the last hour. Storage failures
// propagate.
func (s *CaptchaService) ShouldRequireCaptcha(ctx context.Context, identifier string, identifierType models.IdentifierType, action string, policy CaptchaPolicy, companyID *uuid.UUID) (bool, error) {
	if !policy.Enabled {
		return false, nil
	}

	since := time.Now().Add(-captchaLookback)

	count, err := s.failures.CountIdentifierActions(ctx, identifier, identifierType, FailureAction(action), since)
	if err != nil {
		return false, fmt.Errorf("captcha check failed: %w", err)
	}

	return count >= policy.TriggerAfterFailedAttempts, nil
}

// FailureAction normalizes an action to its failure audit action name,
// e.g. LOGIN -> LOGIN_FAILED
func FailureAction(action string) string {
	normalized := strings.ToUpper(strings.TrimSpace(action))
	if strings.HasSuffix(normalized, "_FAILED") {
		return normalized
	}
	return normalized + "_FAILED"
}
