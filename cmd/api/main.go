package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/calebmoore/vaultguard/internal/background"
	"github.com/calebmoore/vaultguard/internal/config"
	"github.com/calebmoore/vaultguard/internal/database"
	"github.com/calebmoore/vaultguard/internal/geoip"
	"github.com/calebmoore/vaultguard/internal/handlers"
	middlewareCustom "github.com/calebmoore/vaultguard/internal/middleware"
	"github.com/calebmoore/vaultguard/internal/repositories"
	"github.com/calebmoore/vaultguard/internal/routes"
	"github.com/calebmoore/vaultguard/internal/services"
	"github.com/calebmoore/vaultguard/internal/useragent"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// Initialize database
	db, err := database.NewConnection(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize repositories
	threatRepo := repositories.NewThreatEventRepository(db)
	auditRepo := repositories.NewAuditLogRepository(db)
	settingsRepo := repositories.NewSettingsRepository(db)

	// Counter store: Redis when configured, otherwise Postgres
	var windowStore services.RateLimitStore
	pgWindows := repositories.NewRateLimitWindowRepository(db)
	windowStore = pgWindows
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		windowStore = repositories.NewRedisRateLimitStore(client)
		logger.Info("using redis rate limit store", slog.String("addr", cfg.Redis.Addr))
	}

	// Geo-IP collaborator
	var geoResolver geoip.Resolver
	if cfg.GeoIP.DatabasePath != "" {
		mm, err := geoip.NewMaxMindResolver(cfg.GeoIP.DatabasePath)
		if err != nil {
			logger.Error("failed to open geoip database", slog.Any("error", err))
			os.Exit(1)
		}
		defer mm.Close()
		geoResolver = mm
	} else {
		logger.Warn("no geoip database configured, location heuristic disabled")
		geoResolver = geoip.NewStaticResolver(nil)
	}

	uaParser := useragent.NewParser()

	// Recorder worker
	recorder := services.NewThreatRecorder(threatRepo, auditRepo, logger, cfg.Engine.RecorderQueueSize)

	// Engine services
	resolver := services.NewConfigResolver(settingsRepo, logger)
	rateLimiter := services.NewRateLimitService(windowStore, recorder, logger)
	bruteForce := services.NewBruteForceService(auditRepo, recorder, logger)
	anomaly := services.NewAnomalyService(auditRepo, geoResolver, uaParser, recorder, logger)
	captcha := services.NewCaptchaService(auditRepo)
	engine := services.NewEngine(resolver, rateLimiter, bruteForce, anomaly, captcha)

	threatService := services.NewThreatEventService(threatRepo, logger)

	// Retention janitor
	janitor := background.NewRetentionJanitor(threatRepo, windowStore, logger, cfg.Engine.JanitorInterval)

	// Initialize handlers
	threatHandler := handlers.NewThreatHandler(threatService)
	checksHandler := handlers.NewChecksHandler(engine)
	healthHandler := handlers.NewHealthHandler(db)

	// Setup router
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{Env: cfg.Server.Env}))
	router.Use(middlewareCustom.SecureLogger(logger))

	routes.RegisterRoutes(router, threatHandler, checksHandler, healthHandler, resolver, rateLimiter)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start background workers
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go recorder.Start(ctx)
	go janitor.Start(ctx)

	go func() {
		logger.Info("server starting", slog.String("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", slog.Any("error", err))
	}

	janitor.Stop()
	recorder.Stop()
}
