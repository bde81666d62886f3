package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	pkghttp "github.com/calebmoore/vaultguard/pkg/http"
	"github.com/go-chi/httprate"
)

// EdgeRateLimitConfig holds the coarse in-process limit applied before a
// request ever reaches the engine
type EdgeRateLimitConfig struct {
	RequestsPerMinute int
}

// DefaultAdminRateLimit returns the edge limit for the admin API
func DefaultAdminRateLimit() EdgeRateLimitConfig {
	return EdgeRateLimitConfig{
		RequestsPerMinute: 60,
	}
}

// DefaultChecksRateLimit returns the edge limit for the engine check
// endpoint. High: one call per login attempt across the fleet arrives
// here.
func DefaultChecksRateLimit() EdgeRateLimitConfig {
	return EdgeRateLimitConfig{
		RequestsPerMinute: 1200,
	}
}

// EdgeRateLimitByIP is a first line of defense in front of the
// store-backed engine: it sheds floods per instance without any I/O
func EdgeRateLimitByIP(config EdgeRateLimitConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyByRealIP(),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
		}),
	)
}

// ThreatRateLimit gates requests through the engine's windowed counter,
// keyed by client IP. Policy is resolved per request so settings changes
// take effect without a restart. Engine failures answer 503 (fail-closed).
func ThreatRateLimit(resolver *services.ConfigResolver, limiter *services.RateLimitService, action string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			cfg := resolver.GetThreatDetectionConfig(ctx, nil)

			var policy services.RateLimitPolicy
			switch action {
			case models.ActionLogin:
				policy = cfg.RateLimiting.Login
			case models.ActionPasswordReset:
				policy = cfg.RateLimiting.PasswordReset
			default:
				policy = cfg.RateLimiting.API
			}

			result, err := limiter.CheckRateLimit(ctx, clientIP(r), models.IdentifierTypeIP, action, policy, nil)
			if err != nil {
				pkghttp.WriteServiceUnavailable(w, "Rate limit check unavailable")
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))

			if result.Exceeded {
				w.Header().Set("Retry-After", strconv.Itoa(int(time.Until(result.ResetAt).Seconds())+1))
				pkghttp.WriteTooManyRequests(w, "Rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP trusts the chi RealIP middleware to have rewritten RemoteAddr
func clientIP(r *http.Request) string {
	host := r.RemoteAddr
	for i := len(host) - 1; i >= 0; i-- {
		if host[i] == ':' {
			return host[:i]
		}
	}
	return host
}
