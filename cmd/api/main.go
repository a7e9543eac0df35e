package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/trackmeet/core/internal/app"
	"github.com/trackmeet/core/internal/config"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/server"
)

func main() {
	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("api-service")

	// Load configuration
	cfg := config.Load()

	application, err := app.New(context.Background(), cfg, nil, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_creation_failed").
			Msg("Failed to create server")
	}
	defer application.Close()

	// The API process only runs jobs on demand; scheduling belongs to the cron service
	srv := server.New(cfg.Server.Port, application.Registry, nil, application.Logger)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	// Start server
	if err := srv.Start(); err != nil {
		log.Fatal().
			Err(err).
			Str("action", "server_failed").
			Msg("Server failed to start")
	}
}
