package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/trackmeet/core/internal/app"
	"github.com/trackmeet/core/internal/config"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/server"
)

func main() {
	// Parse command line flags
	var (
		jobName   = flag.String("job", "", "Run specific job once (athlete_sync, log_cleanup)")
		once      = flag.Bool("once", false, "Run job once and exit")
		adminPort = flag.String("admin-port", "", "Serve health and manual triggers on this port while scheduling")
	)
	flag.Parse()

	// Setup structured logging
	logger.SetupLogger()
	log := logger.New("cron-service")

	cfg := config.Load()

	ctx := context.Background()
	application, err := app.New(ctx, cfg, nil, log)
	if err != nil {
		log.Fatal().
			Err(err).
			Str("action", "bootstrap_failed").
			Msg("Failed to initialize cron service")
	}
	defer application.Close()
	log = application.Logger

	// Handle single job execution
	if *once && *jobName != "" {
		runCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
		defer cancel()

		log.Info().
			Str("action", "run_once").
			Str("job_name", *jobName).
			Msg("Running job once")

		result, err := application.Registry.Trigger(runCtx, *jobName)
		if err != nil {
			names := make([]string, 0)
			for _, info := range application.Registry.Status() {
				names = append(names, info.Name)
			}
			log.Error().
				Err(err).
				Str("action", "run_once_failed").
				Str("job_name", *jobName).
				Str("available_jobs", strings.Join(names, ", ")).
				Msg("Job run failed")
			application.Close()
			os.Exit(1)
		}

		log.Info().
			Str("action", "run_once_complete").
			Str("job_name", *jobName).
			Interface("result", result).
			Msg("Job completed successfully")
		return
	}

	// Start scheduler
	application.Scheduler.Start()
	log.Info().
		Str("action", "service_started").
		Int("job_count", len(application.Registry.Jobs())).
		Msg("Cron job service started")

	var admin *server.Server
	if *adminPort != "" {
		admin = server.New(*adminPort, application.Registry, application.Scheduler, log)
		go func() {
			if err := admin.Start(); err != nil {
				log.Error().
					Err(err).
					Str("action", "admin_server_failed").
					Msg("Admin server stopped")
			}
		}()
	}

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().
		Str("action", "shutdown").
		Msg("Shutting down cron job service")

	application.Scheduler.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if admin != nil {
		_ = admin.Shutdown(shutdownCtx)
	}
	if err := application.Scheduler.Wait(shutdownCtx); err != nil {
		log.Warn().
			Err(err).
			Str("action", "shutdown_timeout").
			Msg("Running jobs did not finish before shutdown timeout")
	}

	log.Info().
		Str("action", "stopped").
		Msg("Cron job service stopped")
}
