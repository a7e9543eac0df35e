package jobs

import (
	"context"
	"sync"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/logger"
)

// DefaultDaysToKeep is the log retention window when none is configured
const DefaultDaysToKeep = 30

// LogCleaner deletes persisted log entries older than the retention window
type LogCleaner interface {
	Clean(ctx context.Context, daysToKeep int) (int64, error)
}

// LogCleanupJob purges old log entries once per interval
type LogCleanupJob struct {
	cleaner    LogCleaner
	clock      clock.Clock
	logger     *logger.Logger
	config     JobConfig
	daysToKeep int
	mu         sync.Mutex
}

// NewLogCleanupJob creates a new log cleanup job
func NewLogCleanupJob(cleaner LogCleaner, clk clock.Clock, log *logger.Logger, cfg JobConfig, daysToKeep int) *LogCleanupJob {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.New("log-cleanup-job")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = ScheduleDaily
	}
	if daysToKeep == 0 {
		daysToKeep = DefaultDaysToKeep
	}
	return &LogCleanupJob{
		cleaner:    cleaner,
		clock:      clk,
		logger:     log,
		config:     cfg,
		daysToKeep: daysToKeep,
	}
}

func (j *LogCleanupJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.run(ctx)
	return err
}

// Trigger runs a cleanup on demand and returns the number of deleted entries
func (j *LogCleanupJob) Trigger(ctx context.Context) (int64, error) {
	if !j.mu.TryLock() {
		return 0, ErrJobRunning
	}
	defer j.mu.Unlock()

	return j.run(ctx)
}

// RunManually implements ManualJob
func (j *LogCleanupJob) RunManually(ctx context.Context) (any, error) {
	deleted, err := j.Trigger(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]int64{"deleted": deleted}, nil
}

func (j *LogCleanupJob) run(ctx context.Context) (int64, error) {
	log := contextLogger(ctx, j.logger)
	start := j.clock.Now()

	log.Info().
		Str("action", "job_cleanup_start").
		Int("days_to_keep", j.daysToKeep).
		Msg("Starting log cleanup job")

	deleted, err := j.cleaner.Clean(ctx, j.daysToKeep)
	duration := j.clock.Now().Sub(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("action", "cleanup_failed").
			Dur("duration", duration).
			Msg("Log cleanup failed")
		return 0, err
	}

	log.LogJobComplete(j.Name(), duration, int(deleted), 0)
	return deleted, nil
}

// DaysToKeep returns the configured retention window
func (j *LogCleanupJob) DaysToKeep() int {
	return j.daysToKeep
}

func (j *LogCleanupJob) Name() string {
	return "log_cleanup"
}

func (j *LogCleanupJob) Schedule() string {
	return j.config.Schedule
}

func (j *LogCleanupJob) Enabled() bool {
	return j.config.Enabled
}

func (j *LogCleanupJob) RunOnStart() bool {
	return j.config.RunOnStart
}

var _ ManualJob = (*LogCleanupJob)(nil)
