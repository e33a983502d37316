package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/c50bossio/6fb-booking-sub035/config"
	"github.com/c50bossio/6fb-booking-sub035/internal/server"
	"github.com/c50bossio/6fb-booking-sub035/pkg/logger"

	"github.com/joho/godotenv"
)

func main() {
	// Local development secrets; deployed environments set real env vars
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logger.NewLogger(cfg.LogLevel).Named("gateway")

	srv := server.NewServer(cfg, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if err := srv.Shutdown(); err != nil {
		logger.Errorf("Server shutdown failed: %v", err)
	}
}
