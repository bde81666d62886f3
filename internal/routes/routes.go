package routes

import (
	"github.com/calebmoore/vaultguard/internal/handlers"
	"github.com/calebmoore/vaultguard/internal/middleware"
	"github.com/calebmoore/vaultguard/internal/models"
	"github.com/calebmoore/vaultguard/internal/services"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers the security dashboard API. Authentication for
// these endpoints lives in the fronting gateway; this service only applies
// its own rate limiting.
func RegisterRoutes(
	router chi.Router,
	threatHandler *handlers.ThreatHandler,
	checksHandler *handlers.ChecksHandler,
	healthHandler *handlers.HealthHandler,
	resolver *services.ConfigResolver,
	limiter *services.RateLimitService,
) {
	router.Get("/healthz", healthHandler.Healthz)

	// Engine checks, called by the login/reset/gateway services
	router.With(middleware.EdgeRateLimitByIP(middleware.DefaultChecksRateLimit())).
		Post("/api/v1/checks/login", checksHandler.CheckLogin)

	router.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(middleware.EdgeRateLimitByIP(middleware.DefaultAdminRateLimit()))
		r.Use(middleware.ThreatRateLimit(resolver, limiter, models.ActionAPIRequest))

		r.Get("/threats", threatHandler.ListThreats)
		r.Post("/threats/{id}/resolve", threatHandler.ResolveThreat)
	})
}
