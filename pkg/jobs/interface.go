package jobs

import (
	"context"

	"github.com/trackmeet/core/pkg/logger"
)

// Job represents a schedulable job that can be executed by the scheduler
type Job interface {
	// Execute runs the job with the given context
	Execute(ctx context.Context) error

	// Name returns the unique job name, also used as the scheduler key
	Name() string

	// Schedule returns the symbolic interval: "hourly", "daily" or "weekly"
	Schedule() string

	// Enabled reports whether the scheduler should arm this job
	Enabled() bool

	// RunOnStart reports whether the first run happens as soon as the
	// scheduler starts instead of one interval later
	RunOnStart() bool
}

// ManualJob is a Job an operator can also run on demand. The result is
// job specific and errors are returned to the caller.
type ManualJob interface {
	Job
	RunManually(ctx context.Context) (any, error)
}

// JobConfig holds the per-job settings read from configuration
type JobConfig struct {
	Enabled    bool
	Schedule   string
	RunOnStart bool
}

// contextLogger prefers the run logger the scheduler or HTTP handler put in
// ctx and falls back to the job's own logger
func contextLogger(ctx context.Context, fallback *logger.Logger) *logger.Logger {
	if l, ok := ctx.Value(logger.LoggerKey).(*logger.Logger); ok {
		return l
	}
	return fallback
}
