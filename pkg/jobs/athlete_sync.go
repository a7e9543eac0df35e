package jobs

import (
	"context"
	"sync"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models"
)

// AthleteSyncer reconciles the external roster into local storage for a season
type AthleteSyncer interface {
	SyncAthletes(ctx context.Context, season int) (*models.SyncOutcome, error)
}

// AthleteSyncJob pulls the federation roster once per interval for the
// season of the current calendar year
type AthleteSyncJob struct {
	syncer AthleteSyncer
	clock  clock.Clock
	logger *logger.Logger
	config JobConfig
	mu     sync.Mutex
}

// NewAthleteSyncJob creates a new athlete sync job
func NewAthleteSyncJob(syncer AthleteSyncer, clk clock.Clock, log *logger.Logger, cfg JobConfig) *AthleteSyncJob {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.New("athlete-sync-job")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = ScheduleDaily
	}
	return &AthleteSyncJob{
		syncer: syncer,
		clock:  clk,
		logger: log,
		config: cfg,
	}
}

// Execute runs a scheduled sync. The error is returned to the scheduler,
// which logs it and retries at the next interval.
func (j *AthleteSyncJob) Execute(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	_, err := j.run(ctx)
	return err
}

// Trigger runs a sync on demand. It returns ErrJobRunning instead of queueing
// behind a run already in progress.
func (j *AthleteSyncJob) Trigger(ctx context.Context) (*models.SyncOutcome, error) {
	if !j.mu.TryLock() {
		return nil, ErrJobRunning
	}
	defer j.mu.Unlock()

	return j.run(ctx)
}

// RunManually implements ManualJob
func (j *AthleteSyncJob) RunManually(ctx context.Context) (any, error) {
	outcome, err := j.Trigger(ctx)
	if err != nil {
		return nil, err
	}
	return outcome, nil
}

func (j *AthleteSyncJob) run(ctx context.Context) (*models.SyncOutcome, error) {
	log := contextLogger(ctx, j.logger)
	season := j.clock.Now().Year()
	start := j.clock.Now()

	log.Info().
		Str("action", "job_sync_start").
		Int("season", season).
		Msg("Starting athlete sync job")

	outcome, err := j.syncer.SyncAthletes(ctx, season)
	duration := j.clock.Now().Sub(start)

	if err != nil {
		log.Error().
			Err(err).
			Str("action", "sync_failed").
			Int("season", season).
			Dur("duration", duration).
			Msg("Athlete sync failed")
		return outcome, err
	}

	log.Info().
		Str("action", "sync_summary").
		Int("season", season).
		Int("athletes_created", outcome.Athletes.Created).
		Int("athletes_updated", outcome.Athletes.Updated).
		Int("athletes_skipped", outcome.Athletes.Skipped).
		Int("clubs_created", outcome.Clubs.Created).
		Int("clubs_skipped", outcome.Clubs.Skipped).
		Msg("Athlete sync finished")
	log.LogJobComplete(j.Name(), duration, outcome.Processed(), outcome.Athletes.Skipped)
	return outcome, nil
}

func (j *AthleteSyncJob) Name() string {
	return "athlete_sync"
}

func (j *AthleteSyncJob) Schedule() string {
	return j.config.Schedule
}

func (j *AthleteSyncJob) Enabled() bool {
	return j.config.Enabled
}

func (j *AthleteSyncJob) RunOnStart() bool {
	return j.config.RunOnStart
}

var _ ManualJob = (*AthleteSyncJob)(nil)
