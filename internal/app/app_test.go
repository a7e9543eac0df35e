package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmeet/core/internal/config"
	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver: config.StoreDriverMemory,
		Federation: config.FederationConfig{
			FixtureMode:        true,
			DefaultClubCountry: "FRA",
		},
		Jobs: config.JobsConfig{
			AthleteSync: jobs.JobConfig{Enabled: true, Schedule: "daily"},
			LogCleanup:  jobs.JobConfig{Enabled: false, Schedule: "weekly"},
			DaysToKeep:  30,
		},
	}
}

func TestNew_MemoryFixtureMode(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	a, err := New(context.Background(), memoryConfig(), fake, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	status := a.Registry.Status()
	require.Len(t, status, 2)
	assert.Equal(t, "athlete_sync", status[0].Name)
	assert.Equal(t, "log_cleanup", status[1].Name)
	assert.False(t, status[1].Enabled)

	a.Scheduler.Start()
	assert.Equal(t, 1, fake.Pending(), "only the enabled job is armed")
}

func TestNew_ManualSyncAgainstFixture(t *testing.T) {
	fake := clock.NewFake(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	a, err := New(context.Background(), memoryConfig(), fake, logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	result, err := a.Registry.Trigger(context.Background(), "athlete_sync")
	require.NoError(t, err)
	outcome, ok := result.(*models.SyncOutcome)
	require.True(t, ok)

	assert.Equal(t, 2026, outcome.Season)
	assert.Equal(t, 6, outcome.Athletes.Created)
	assert.Equal(t, 1, outcome.Athletes.Skipped)
	assert.Equal(t, 3, outcome.Clubs.Created)

	second, err := a.AthleteSync.Trigger(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, second.Athletes.Created)
	assert.Equal(t, 6, second.Athletes.Updated)
	assert.Equal(t, 3, second.Clubs.Skipped)
}

func TestNew_ManualCleanup(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), clock.NewFake(time.Now()), logger.Nop())
	require.NoError(t, err)
	defer a.Close()

	result, err := a.Registry.Trigger(context.Background(), "log_cleanup")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"deleted": 0}, result)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := memoryConfig()
	cfg.StoreDriver = "mongo"

	_, err := New(context.Background(), cfg, nil, logger.Nop())
	assert.Error(t, err)
}
