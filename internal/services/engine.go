package services

import (
	"context"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/google/uuid"
)

// Engine composes the detectors the way protected callers consume them:
// resolve policy once, then run the relevant checks against it
type Engine struct {
	config      *ConfigResolver
	rateLimiter *RateLimitService
	bruteForce  *BruteForceService
	anomaly     *AnomalyService
	captcha     *CaptchaService
}

// NewEngine creates a new Engine facade
func NewEngine(config *ConfigResolver, rateLimiter *RateLimitService, bruteForce *BruteForceService, anomaly *AnomalyService, captcha *CaptchaService) *Engine {
	return &Engine{
		config:      config,
		rateLimiter: rateLimiter,
		bruteForce:  bruteForce,
		anomaly:     anomaly,
		captcha:     captcha,
	}
}

// LoginCheck aggregates the engine's verdicts for one login attempt. The
// caller must deny while RateLimit.Exceeded or BruteForce.Locked, should
// challenge when CaptchaRequired, and may step up verification on
// Anomaly.IsAnomaly.
type LoginCheck struct {
	RateLimit       *RateLimitResult
	BruteForce      *BruteForceResult
	CaptchaRequired bool
	Anomaly         *AnomalyResult
}

// CheckLoginAttempt runs the full pre-authentication gauntlet for a login.
// Any storage or lookup failure propagates: the caller must fail closed.
func (e *Engine) CheckLoginAttempt(ctx context.Context, userID uuid.UUID, ipAddress, userAgent string, companyID *uuid.UUID) (*LoginCheck, error) {
	cfg := e.config.GetThreatDetectionConfig(ctx, companyID)

	rateLimit, err := e.rateLimiter.CheckRateLimit(ctx, ipAddress, models.IdentifierTypeIP, models.ActionLogin, cfg.RateLimiting.Login, companyID)
	if err != nil {
		return nil, err
	}

	bruteForce, err := e.bruteForce.CheckBruteForce(ctx, userID, cfg.BruteForce, companyID)
	if err != nil {
		return nil, err
	}

	captchaRequired, err := e.captcha.ShouldRequireCaptcha(ctx, ipAddress, models.IdentifierTypeIP, models.ActionLogin, cfg.Captcha, companyID)
	if err != nil {
		return nil, err
	}

	// Advisory; runs last so the hard verdicts above are never delayed by
	// geo lookups
	anomaly, err := e.anomaly.DetectAnomalies(ctx, userID, ipAddress, userAgent, cfg.Anomaly, companyID)
	if err != nil {
		return nil, err
	}

	return &LoginCheck{
		RateLimit:       rateLimit,
		BruteForce:      bruteForce,
		CaptchaRequired: captchaRequired,
		Anomaly:         anomaly,
	}, nil
}

// CheckPasswordReset gates a password-reset request by identifier
func (e *Engine) CheckPasswordReset(ctx context.Context, identifier string, identifierType models.IdentifierType, companyID *uuid.UUID) (*RateLimitResult, error) {
	cfg := e.config.GetThreatDetectionConfig(ctx, companyID)
	return e.rateLimiter.CheckRateLimit(ctx, identifier, identifierType, models.ActionPasswordReset, cfg.RateLimiting.PasswordReset, companyID)
}

// CheckAPIRequest gates an API-gateway request by client IP
func (e *Engine) CheckAPIRequest(ctx context.Context, ipAddress string, companyID *uuid.UUID) (*RateLimitResult, error) {
	cfg := e.config.GetThreatDetectionConfig(ctx, companyID)
	return e.rateLimiter.CheckRateLimit(ctx, ipAddress, models.IdentifierTypeIP, models.ActionAPIRequest, cfg.RateLimiting.API, companyID)
}
