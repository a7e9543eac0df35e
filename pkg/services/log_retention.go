package services

import (
	"context"
	"fmt"
	"time"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/logger"
)

// SlowCleanupThreshold is the cleanup duration above which an advisory warning is logged
const SlowCleanupThreshold = 30 * time.Second

// LogRetentionService deletes log rows older than a retention window
type LogRetentionService struct {
	store     LogStore
	clock     clock.Clock
	logger    *logger.Logger
	warnAbove int64
}

// NewLogRetentionService creates the cleaner. warnAbove is the deleted-row
// count above which a warning is logged; 0 disables that warning.
func NewLogRetentionService(store LogStore, clk clock.Clock, log *logger.Logger, warnAbove int64) *LogRetentionService {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &LogRetentionService{
		store:     store,
		clock:     clk,
		logger:    log,
		warnAbove: warnAbove,
	}
}

// Cutoff returns the instant before which logs are deleted
func (s *LogRetentionService) Cutoff(daysToKeep int) time.Time {
	return s.clock.Now().Add(-time.Duration(daysToKeep) * 24 * time.Hour)
}

// Clean deletes every log strictly older than now minus daysToKeep days and
// returns how many rows went away. The warnings never change the result.
func (s *LogRetentionService) Clean(ctx context.Context, daysToKeep int) (int64, error) {
	if daysToKeep < 1 {
		return 0, fmt.Errorf("days to keep must be at least 1, got %d", daysToKeep)
	}

	start := s.clock.Now()
	cutoff := s.Cutoff(daysToKeep)

	s.logger.Info().
		Str("action", "log_cleanup_start").
		Int("days_to_keep", daysToKeep).
		Time("cutoff", cutoff).
		Msg("Starting log retention cleanup")

	deleted, err := s.store.DeleteLogsBefore(ctx, cutoff)
	duration := s.clock.Now().Sub(start)
	s.logger.LogDatabaseOperation("delete", "logs", int(deleted), duration, err)
	if err != nil {
		return 0, fmt.Errorf("failed to delete logs older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	s.logger.Info().
		Str("action", "log_cleanup_complete").
		Int64("deleted", deleted).
		Dur("duration", duration).
		Msg("Log retention cleanup completed")

	if duration > SlowCleanupThreshold {
		s.logger.Warn().
			Str("action", "log_cleanup_slow").
			Dur("duration", duration).
			Dur("threshold", SlowCleanupThreshold).
			Msg("Log cleanup took longer than expected")
	}
	if s.warnAbove > 0 && deleted > s.warnAbove {
		s.logger.Warn().
			Str("action", "log_cleanup_large").
			Int64("deleted", deleted).
			Int64("threshold", s.warnAbove).
			Msg("Log cleanup deleted more rows than expected")
	}

	return deleted, nil
}
