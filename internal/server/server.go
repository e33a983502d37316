package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/c50bossio/6fb-booking-sub035/api/router"
	"github.com/c50bossio/6fb-booking-sub035/config"
	"github.com/c50bossio/6fb-booking-sub035/internal/dispatch"
	"github.com/c50bossio/6fb-booking-sub035/internal/idempotency"
	"github.com/c50bossio/6fb-booking-sub035/internal/storage"
	"github.com/c50bossio/6fb-booking-sub035/pkg/logger"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	httpServer    *http.Server
	metricsServer *http.Server
	logger        *logger.Logger
	store         idempotency.Store
	dispatcher    dispatch.Dispatcher
	db            *storage.MongoDB
}

func NewServer(cfg *config.Config, log *logger.Logger) *Server {
	zl := log.Desugar()

	dispatcher, err := dispatch.NewRabbitMQ(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.QueueName, zl)
	if err != nil {
		log.Fatalf("failed to create rabbitmq dispatcher: %v", err)
	}
	dispatcher.StartMetricsUpdater(context.Background())

	srv := &Server{
		logger:     log,
		dispatcher: dispatcher,
	}

	store, db, err := buildStore(cfg, zl)
	if err != nil {
		log.Fatalf("failed to create idempotency store: %v", err)
	}
	srv.store = store
	srv.db = db

	r := router.Setup(log, store, dispatcher, cfg)

	metricsAddr := fmt.Sprintf(":%d", cfg.Monitoring.PrometheusPort)
	srv.metricsServer = &http.Server{
		Addr:    metricsAddr,
		Handler: promhttp.Handler(),
	}
	srv.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	return srv
}

// buildStore picks the idempotency backend from configuration. The mongo
// backend reuses the gateway's database connection; redis stands alone; the
// memory backend exists for development without external services.
func buildStore(cfg *config.Config, zl *zap.Logger) (idempotency.Store, *storage.MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cfg.Idempotency.Backend {
	case "redis":
		store, err := idempotency.NewRedisStore(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, zl)
		return store, nil, err
	case "memory":
		zl.Warn("Using in-memory idempotency store; records do not survive restarts")
		return idempotency.NewMemoryStore(), nil, nil
	default:
		db, err := storage.NewMongoDB(cfg.MongoDB.URI, cfg.MongoDB.Database, cfg.MongoDB.DeliveryCollection, zl)
		if err != nil {
			return nil, nil, err
		}
		store, err := idempotency.NewMongoStore(ctx, db.Collection(cfg.MongoDB.IdempotencyCollection), zl)
		if err != nil {
			return nil, nil, err
		}
		return store, db, nil
	}
}

func (s *Server) Start() error {
	// Start metrics server in a goroutine
	go func() {
		s.logger.Info("Metrics server starting on port " + s.metricsServer.Addr)
		if err := s.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Errorf("metrics server error: %v", err)
		}
	}()

	s.logger.Info("Server starting on port " + s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown() error {
	s.logger.Info("Server shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.dispatcher.Close(); err != nil {
		s.logger.Error("failed to close dispatcher", zap.Error(err))
	}
	if err := s.store.Close(ctx); err != nil {
		s.logger.Error("failed to close idempotency store", zap.Error(err))
	}
	if s.db != nil {
		if err := s.db.Close(ctx); err != nil {
			s.logger.Error("failed to close mongodb", zap.Error(err))
		}
	}
	return s.httpServer.Shutdown(ctx)
}
