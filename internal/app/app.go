// Package app wires configuration, stores, the federation client, services
// and jobs into a runnable process.
package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/trackmeet/core/internal/config"
	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/database"
	"github.com/trackmeet/core/pkg/database/memstore"
	"github.com/trackmeet/core/pkg/database/pool"
	"github.com/trackmeet/core/pkg/federation"
	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models"
	"github.com/trackmeet/core/pkg/services"
)

// App holds the wired components of one process
type App struct {
	Config      *config.Config
	Logger      *logger.Logger
	Clock       clock.Clock
	Scheduler   *jobs.Scheduler
	Registry    *jobs.Registry
	AthleteSync *jobs.AthleteSyncJob
	LogCleanup  *jobs.LogCleanupJob

	hook    *logger.PersistHook
	closers []func()
}

// New builds every component from cfg. clk may be nil for the wall clock.
func New(ctx context.Context, cfg *config.Config, clk clock.Clock, log *logger.Logger) (*App, error) {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.New("trackmeet-core")
	}
	if err := cfg.Validate(log); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{Config: cfg, Clock: clk, Logger: log}

	rosterStore, logStore, err := a.openStores(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	// warnings and errors are also kept in the log table so retention has work to do
	a.hook = logger.NewPersistHook(&logEntryWriter{store: logStore}, zerolog.WarnLevel, 256)
	a.Logger = log.WithHook(a.hook)

	var source services.RosterSource
	var lookup services.ClubLookup
	if cfg.Federation.FixtureMode {
		source = federation.NewFixtureSource()
		a.Logger.Info().
			Str("action", "fixture_mode").
			Msg("Using embedded roster fixture instead of the federation API")
	} else {
		client := federation.NewClient(federationConfig(cfg.Federation), a.Logger)
		source = client
		lookup = client
	}

	syncService := services.NewAthleteSyncService(rosterStore, source, lookup, clk, a.Logger, cfg.Federation.DefaultClubCountry)
	retention := services.NewLogRetentionService(logStore, clk, a.Logger, cfg.Jobs.LogDeleteWarnAbove)

	a.AthleteSync = jobs.NewAthleteSyncJob(syncService, clk, a.Logger, cfg.Jobs.AthleteSync)
	a.LogCleanup = jobs.NewLogCleanupJob(retention, clk, a.Logger, cfg.Jobs.LogCleanup, cfg.Jobs.DaysToKeep)

	a.Registry = jobs.NewRegistry()
	for _, job := range []jobs.ManualJob{a.AthleteSync, a.LogCleanup} {
		if err := a.Registry.Register(job); err != nil {
			a.Close()
			return nil, err
		}
	}

	a.Scheduler = jobs.NewScheduler(clk, a.Logger)
	if err := a.Registry.RegisterAll(a.Scheduler); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *App) openStores(ctx context.Context) (services.RosterStore, services.LogStore, error) {
	if a.Config.StoreDriver == config.StoreDriverMemory {
		a.Logger.Warn().
			Str("action", "memory_store").
			Msg("Using in-memory store, data is lost on exit")
		store := memstore.New(a.Clock.Now)
		return store, store, nil
	}

	poolCfg := pool.DefaultConfig()
	if a.Config.Database.MaxConns > 0 {
		poolCfg.MaxConns = int32(a.Config.Database.MaxConns)
	}

	dbPool, err := pool.New(ctx, a.Config.DatabaseURL(), poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, dbPool.Close)

	if err := database.EnsureSchema(ctx, dbPool); err != nil {
		return nil, nil, err
	}

	logs, err := database.OpenLogStore(ctx, a.Config.DatabaseURL())
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, func() { _ = logs.Close() })

	stats := pool.GetStats(dbPool)
	a.Logger.Info().
		Str("action", "db_connected").
		Int32("max_conns", stats.MaxConns).
		Int32("total_conns", stats.TotalConns).
		Msg("Database connection pool established")

	return database.New(dbPool), logs, nil
}

// Close stops the scheduler, flushes persisted logs and releases connections
func (a *App) Close() {
	if a.Scheduler != nil {
		a.Scheduler.Stop()
	}
	if a.hook != nil {
		a.hook.Close()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func federationConfig(cfg config.FederationConfig) *federation.Config {
	fc := federation.DefaultConfig(cfg.BaseURL, cfg.APIKey)
	if cfg.Timeout > 0 {
		fc.Timeout = cfg.Timeout
	}
	fc.RequestsPerMin = cfg.RequestsPerMin
	fc.RetryCount = cfg.RetryCount
	if cfg.BreakerFailures > 0 {
		fc.BreakerFailures = uint32(cfg.BreakerFailures)
	}
	if cfg.BreakerTimeout > 0 {
		fc.BreakerTimeout = cfg.BreakerTimeout
	}
	if cfg.ClubCacheTTL > 0 {
		fc.ClubCacheTTL = cfg.ClubCacheTTL
	}
	return fc
}

type logEntryWriter struct {
	store services.LogStore
}

func (w *logEntryWriter) WriteEntry(ctx context.Context, level, message string) error {
	_, err := w.store.CreateLog(ctx, &models.LogEntry{Level: level, Message: message})
	return err
}
