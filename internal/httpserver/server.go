package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/PratikDhanave/event-inbox-service/internal/auth"
	"github.com/PratikDhanave/event-inbox-service/internal/config"
	"github.com/PratikDhanave/event-inbox-service/internal/handlers"
	"github.com/PratikDhanave/event-inbox-service/internal/logging"
	"github.com/PratikDhanave/event-inbox-service/internal/metrics"
	"github.com/PratikDhanave/event-inbox-service/internal/ratelimit"
)

// Service is what the router needs from the event layer.
type Service interface {
	handlers.EventService
	Ping(ctx context.Context) error
}

// NewRouter wires public endpoints and authenticated APIs.
// Public: /health, /ready, /metrics
// Authenticated: <api_prefix>/events/...
// Background housekeeping started here stops when ctx is done.
func NewRouter(ctx context.Context, cfg *config.Config, svc Service, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logging.Middleware(logger))
	r.Use(metrics.Middleware())

	// Liveness: confirms the process is running.
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": cfg.App.Name,
			"version": cfg.App.Version,
		})
	})

	// Readiness: confirms the storage dependency is reachable.
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()

		if err := svc.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group(cfg.Server.APIPrefix)
	if len(cfg.Auth.APIKeys) > 0 {
		api.Use(auth.APIKeyMiddleware(cfg.Auth.Header, cfg.Auth.APIKeys))
	} else {
		logger.Warn("no API keys configured, authentication disabled")
	}
	if cfg.RateLimit.PerMinute > 0 {
		limiter := ratelimit.New(cfg.RateLimit.PerMinute)
		go limiter.Run(ctx, time.Minute)
		api.Use(ratelimit.Middleware(limiter, auth.ClientKey))
	}

	opts := handlers.Options{
		MaxPayloadBytes:   cfg.Events.MaxPayloadSizeKB * 1024,
		DefaultInboxLimit: cfg.Events.DefaultInboxLimit,
		MaxInboxLimit:     cfg.Events.MaxInboxLimit,
		DevFallbacks:      cfg.Events.DevFallbacks,
	}

	handlers.RegisterEventRoutes(api, svc, opts, logger)
	handlers.RegisterInboxRoutes(api, svc, opts, logger)
	handlers.RegisterStatsRoutes(api, svc)

	return r
}

// NewServer wraps the router in an http.Server with the configured timeouts.
func NewServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Addr(),
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
}
