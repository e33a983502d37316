package router

import (
	"github.com/c50bossio/6fb-booking-sub035/api/handlers"
	"github.com/c50bossio/6fb-booking-sub035/api/middleware"
	"github.com/c50bossio/6fb-booking-sub035/config"
	"github.com/c50bossio/6fb-booking-sub035/internal/audit"
	"github.com/c50bossio/6fb-booking-sub035/internal/dispatch"
	"github.com/c50bossio/6fb-booking-sub035/internal/idempotency"
	"github.com/c50bossio/6fb-booking-sub035/internal/models"
	"github.com/c50bossio/6fb-booking-sub035/internal/replay"
	"github.com/c50bossio/6fb-booking-sub035/internal/validation"
	"github.com/c50bossio/6fb-booking-sub035/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Setup wires the validation pipeline and mounts the provider endpoints.
// The idempotency store is constructed by the caller so the gateway and
// tests can pick different backends.
func Setup(log *logger.Logger, store idempotency.Store, dispatcher dispatch.Dispatcher, cfg *config.Config) *gin.Engine {
	router := gin.Default()

	zl := log.Desugar()

	providers := map[models.Provider]validation.ProviderConfig{
		models.ProviderStripe: {
			Secret:   cfg.Providers.Stripe.Secret,
			FailOpen: cfg.Providers.Stripe.FailOpen,
		},
		models.ProviderTwilio: {
			Secret:     cfg.Providers.Twilio.Secret,
			WebhookURL: cfg.Providers.Twilio.WebhookURL,
			FailOpen:   cfg.Providers.Twilio.FailOpen,
		},
		models.ProviderGeneric: {
			Secret:   cfg.Providers.Generic.Secret,
			FailOpen: cfg.Providers.Generic.FailOpen,
		},
	}

	service := validation.NewService(
		providers,
		replay.NewGuard(cfg.Replay.MaxAgeSeconds, cfg.Replay.MaxFutureSkewSeconds),
		store,
		audit.NewZapSink(zl),
		cfg.Idempotency.TTL,
		zl,
	)

	webhookHandler := handlers.NewWebhookHandler(zl, service, dispatcher)
	security := middleware.NewSecurityMiddleware(zl, 0)

	// Health check endpoint (no authentication required)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Metrics endpoint for Prometheus
	router.GET(cfg.Monitoring.MetricsPath, gin.WrapH(promhttp.Handler()))

	hooks := router.Group("/webhooks", security.LimitBodySize())
	hooks.POST("/stripe", security.RequireContentType("application/json"), webhookHandler.HandleStripe)
	hooks.POST("/twilio", security.RequireContentType("application/x-www-form-urlencoded"), webhookHandler.HandleTwilio)
	hooks.POST("/generic", security.RequireContentType("application/json"), webhookHandler.HandleGeneric)

	zl.Info("Router configured",
		zap.String("idempotency_backend", cfg.Idempotency.Backend),
		zap.Bool("stripe_fail_open", cfg.Providers.Stripe.FailOpen),
		zap.Bool("twilio_fail_open", cfg.Providers.Twilio.FailOpen),
	)

	return router
}
