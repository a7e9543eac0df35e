package health

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models/api"
)

// JobLister reports the configured jobs
type JobLister interface {
	Status() []jobs.JobInfo
}

// SchedulerView reports the live scheduler state
type SchedulerView interface {
	Running() bool
	Snapshot() []jobs.TaskStatus
}

// Handler handles health check requests
type Handler struct {
	jobs      JobLister
	scheduler SchedulerView
	logger    *logger.Logger
}

// NewHandler creates a new health handler. scheduler may be nil when the
// process does not run one.
func NewHandler(jobLister JobLister, scheduler SchedulerView, log *logger.Logger) *Handler {
	return &Handler{
		jobs:      jobLister,
		scheduler: scheduler,
		logger:    log,
	}
}

// HealthCheck handles the /health endpoint
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	response := api.HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Jobs:      []jobs.JobInfo{},
	}
	if h.jobs != nil {
		response.Jobs = h.jobs.Status()
	}
	if h.scheduler != nil {
		response.SchedulerRunning = h.scheduler.Running()
		response.Tasks = h.scheduler.Snapshot()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "health_check_failed").
			Str("endpoint", "/health").
			Msg("Failed to encode health response")
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}

	h.logger.Debug().
		Str("action", "health_check").
		Str("endpoint", "/health").
		Str("method", r.Method).
		Str("remote_addr", r.RemoteAddr).
		Int("status_code", 200).
		Dur("duration", time.Since(start)).
		Msg("Health check completed")
}
