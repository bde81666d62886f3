package services

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// SettingsPrefix scopes the keys the resolver reads from the settings store
const SettingsPrefix = "security.threat."

// SettingsRepository is the flat key/value store feeding threat policy
type SettingsRepository interface {
	ListByPrefix(ctx context.Context, companyID *uuid.UUID, prefix string) ([]models.Setting, error)
}

// RateLimitPolicy caps request volume for one action
type RateLimitPolicy struct {
	Enabled       bool
	MaxRequests   int `validate:"min=1,max=100000"`
	WindowMinutes int `validate:"min=1,max=1440"`
}

// BruteForcePolicy controls failed-login lockout
type BruteForcePolicy struct {
	Enabled                bool
	MaxAttempts            int `validate:"min=1,max=1000"`
	LockoutDurationMinutes int `validate:"min=1,max=10080"`
	WindowMinutes          int `validate:"min=1,max=1440"`
}

// AnomalyPolicy toggles the login-context heuristics
type AnomalyPolicy struct {
	Enabled              bool
	CheckUnusualLocation bool
	CheckUnusualTime     bool
	CheckUnusualDevice   bool
}

// CaptchaPolicy controls CAPTCHA escalation
type CaptchaPolicy struct {
	Enabled                    bool
	TriggerAfterFailedAttempts int `validate:"min=1,max=100"`
}

// RateLimitPolicies groups the per-action rate limits
type RateLimitPolicies struct {
	Login         RateLimitPolicy
	PasswordReset RateLimitPolicy
	API           RateLimitPolicy
}

// ThreatDetectionConfig is the full, typed policy tree. It is rebuilt on
// every resolution call and never persisted as its own entity.
type ThreatDetectionConfig struct {
	RateLimiting RateLimitPolicies
	BruteForce   BruteForcePolicy
	Anomaly      AnomalyPolicy
	Captcha      CaptchaPolicy
}

// DefaultThreatDetectionConfig returns the hard-coded defaults applied for
// every missing or invalid setting
func DefaultThreatDetectionConfig() ThreatDetectionConfig {
	return ThreatDetectionConfig{
		RateLimiting: RateLimitPolicies{
			Login:         RateLimitPolicy{Enabled: true, MaxRequests: 5, WindowMinutes: 15},
			PasswordReset: RateLimitPolicy{Enabled: true, MaxRequests: 3, WindowMinutes: 60},
			API:           RateLimitPolicy{Enabled: true, MaxRequests: 100, WindowMinutes: 1},
		},
		BruteForce: BruteForcePolicy{
			Enabled:                true,
			MaxAttempts:            5,
			LockoutDurationMinutes: 15,
			WindowMinutes:          15,
		},
		Anomaly: AnomalyPolicy{
			Enabled:              true,
			CheckUnusualLocation: true,
			CheckUnusualTime:     true,
			CheckUnusualDevice:   true,
		},
		Captcha: CaptchaPolicy{
			Enabled:                    true,
			TriggerAfterFailedAttempts: 3,
		},
	}
}

// ConfigResolver builds ThreatDetectionConfig from the settings store.
// Resolution always succeeds: missing keys, unparsable values and store
// failures all fall back to defaults.
type ConfigResolver struct {
	settings SettingsRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewConfigResolver creates a new ConfigResolver
func NewConfigResolver(settings SettingsRepository, logger *slog.Logger) *ConfigResolver {
	return &ConfigResolver{
		settings: settings,
		validate: validator.New(),
		logger:   logger,
	}
}

// GetThreatDetectionConfig resolves the current policy, optionally scoped
// to a tenant whose overrides win over global settings
func (r *ConfigResolver) GetThreatDetectionConfig(ctx context.Context, companyID *uuid.UUID) ThreatDetectionConfig {
	cfg := DefaultThreatDetectionConfig()

	rows, err := r.settings.ListByPrefix(ctx, companyID, SettingsPrefix)
	if err != nil {
		r.logger.Warn("failed to load threat settings, using defaults", slog.Any("error", err))
		return cfg
	}

	// Rows arrive global-first, tenant overrides last; later wins
	values := make(map[string]string, len(rows))
	for _, s := range rows {
		values[strings.TrimPrefix(s.Key, SettingsPrefix)] = s.Value
	}

	m := settingsMap{values: values, logger: r.logger}

	m.applyBool("rateLimiting.login.enabled", &cfg.RateLimiting.Login.Enabled)
	m.applyInt("rateLimiting.login.maxRequests", &cfg.RateLimiting.Login.MaxRequests)
	m.applyInt("rateLimiting.login.windowMinutes", &cfg.RateLimiting.Login.WindowMinutes)

	m.applyBool("rateLimiting.passwordReset.enabled", &cfg.RateLimiting.PasswordReset.Enabled)
	m.applyInt("rateLimiting.passwordReset.maxRequests", &cfg.RateLimiting.PasswordReset.MaxRequests)
	m.applyInt("rateLimiting.passwordReset.windowMinutes", &cfg.RateLimiting.PasswordReset.WindowMinutes)

	m.applyBool("rateLimiting.api.enabled", &cfg.RateLimiting.API.Enabled)
	m.applyInt("rateLimiting.api.maxRequests", &cfg.RateLimiting.API.MaxRequests)
	m.applyInt("rateLimiting.api.windowMinutes", &cfg.RateLimiting.API.WindowMinutes)

	m.applyBool("bruteForceProtection.enabled", &cfg.BruteForce.Enabled)
	m.applyInt("bruteForceProtection.maxAttempts", &cfg.BruteForce.MaxAttempts)
	m.applyInt("bruteForceProtection.lockoutDurationMinutes", &cfg.BruteForce.LockoutDurationMinutes)
	m.applyInt("bruteForceProtection.windowMinutes", &cfg.BruteForce.WindowMinutes)

	m.applyBool("anomalyDetection.enabled", &cfg.Anomaly.Enabled)
	m.applyBool("anomalyDetection.checkUnusualLocation", &cfg.Anomaly.CheckUnusualLocation)
	m.applyBool("anomalyDetection.checkUnusualTime", &cfg.Anomaly.CheckUnusualTime)
	m.applyBool("anomalyDetection.checkUnusualDevice", &cfg.Anomaly.CheckUnusualDevice)

	m.applyBool("captcha.enabled", &cfg.Captcha.Enabled)
	m.applyInt("captcha.triggerAfterFailedAttempts", &cfg.Captcha.TriggerAfterFailedAttempts)

	return r.clampInvalid(cfg)
}

// clampInvalid resets any policy group that fails bounds validation back to
// its defaults, so a bad setting can never produce an unenforceable policy
func (r *ConfigResolver) clampInvalid(cfg ThreatDetectionConfig) ThreatDetectionConfig {
	defaults := DefaultThreatDetectionConfig()

	if err := r.validate.Struct(cfg.RateLimiting.Login); err != nil {
		r.logger.Warn("invalid login rate limit policy, using defaults", slog.Any("error", err))
		cfg.RateLimiting.Login = defaults.RateLimiting.Login
	}
	if err := r.validate.Struct(cfg.RateLimiting.PasswordReset); err != nil {
		r.logger.Warn("invalid password reset rate limit policy, using defaults", slog.Any("error", err))
		cfg.RateLimiting.PasswordReset = defaults.RateLimiting.PasswordReset
	}
	if err := r.validate.Struct(cfg.RateLimiting.API); err != nil {
		r.logger.Warn("invalid api rate limit policy, using defaults", slog.Any("error", err))
		cfg.RateLimiting.API = defaults.RateLimiting.API
	}
	if err := r.validate.Struct(cfg.BruteForce); err != nil {
		r.logger.Warn("invalid brute force policy, using defaults", slog.Any("error", err))
		cfg.BruteForce = defaults.BruteForce
	}
	if err := r.validate.Struct(cfg.Captcha); err != nil {
		r.logger.Warn("invalid captcha policy, using defaults", slog.Any("error", err))
		cfg.Captcha = defaults.Captcha
	}

	return cfg
}

// settingsMap applies typed overrides from the flat settings map
type settingsMap struct {
	values map[string]string
	logger *slog.Logger
}

func (m settingsMap) applyInt(key string, target *int) {
	raw, ok := m.values[key]
	if !ok {
		return
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		m.logger.Warn("ignoring non-integer threat setting",
			slog.String("key", SettingsPrefix+key),
			slog.String("value", raw))
		return
	}
	*target = v
}

func (m settingsMap) applyBool(key string, target *bool) {
	raw, ok := m.values[key]
	if !ok {
		return
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		m.logger.Warn("ignoring non-boolean threat setting",
			slog.String("key", SettingsPrefix+key),
			slog.String("value", raw))
		return
	}
	*target = v
}
