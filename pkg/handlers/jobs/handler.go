package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models/api"
)

// Runner lists and runs jobs on demand
type Runner interface {
	Status() []jobs.JobInfo
	Trigger(ctx context.Context, name string) (any, error)
}

type Handler struct {
	runner Runner
	logger *logger.Logger
}

func NewHandler(runner Runner, logger *logger.Logger) *Handler {
	return &Handler{
		runner: runner,
		logger: logger,
	}
}

// List handles GET /api/jobs
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, api.JobsResponse{Data: h.runner.Status()})
}

// Trigger handles POST /api/jobs/{name}/trigger. The run happens inline and
// its result or error is returned to the caller.
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	requestID := uuid.New().String()
	log := h.logger.WithRequestID(requestID).WithJob(name)
	ctx := log.ToContext(r.Context())
	w.Header().Set("X-Request-ID", requestID)

	log.Info().
		Str("action", "manual_trigger").
		Str("remote_addr", r.RemoteAddr).
		Msg("Manual job run requested")

	start := time.Now()
	result, err := h.runner.Trigger(ctx, name)
	duration := time.Since(start)

	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, jobs.ErrUnknownJob):
			status = http.StatusNotFound
		case errors.Is(err, jobs.ErrJobRunning):
			status = http.StatusConflict
		}

		log.Error().
			Err(err).
			Str("action", "manual_trigger_failed").
			Int("status_code", status).
			Dur("duration", duration).
			Msg("Manual job run failed")
		h.writeJSON(w, status, api.Response{Success: false, Message: err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, api.Response{
		Success: true,
		Data: api.TriggerResponse{
			Job:        name,
			RequestID:  requestID,
			DurationMS: duration.Milliseconds(),
			Result:     result,
		},
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Error().
			Err(err).
			Str("action", "encode_response_failed").
			Msg("Failed to encode response")
	}
}
