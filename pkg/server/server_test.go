package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmeet/core/pkg/jobs"
	"github.com/trackmeet/core/pkg/logger"
	"github.com/trackmeet/core/pkg/models/api"
)

type mockRunner struct {
	status      []jobs.JobInfo
	triggerFunc func(ctx context.Context, name string) (any, error)
}

func (m *mockRunner) Status() []jobs.JobInfo {
	return m.status
}

func (m *mockRunner) Trigger(ctx context.Context, name string) (any, error) {
	return m.triggerFunc(ctx, name)
}

type mockScheduler struct {
	running bool
	tasks   []jobs.TaskStatus
}

func (m *mockScheduler) Running() bool               { return m.running }
func (m *mockScheduler) Snapshot() []jobs.TaskStatus { return m.tasks }

func newTestServer(runner *mockRunner, scheduler *mockScheduler) http.Handler {
	if scheduler == nil {
		return New("0", runner, nil, logger.Nop()).Handler()
	}
	return New("0", runner, scheduler, logger.Nop()).Handler()
}

func defaultRunner() *mockRunner {
	return &mockRunner{
		status: []jobs.JobInfo{
			{Name: "athlete_sync", Schedule: "daily", Enabled: true},
			{Name: "log_cleanup", Schedule: "daily", Enabled: false},
		},
		triggerFunc: func(ctx context.Context, name string) (any, error) {
			switch name {
			case "log_cleanup":
				return map[string]int64{"deleted": 4}, nil
			case "athlete_sync":
				return nil, jobs.ErrJobRunning
			case "broken":
				return nil, errors.New("roster fetch failed")
			}
			return nil, jobs.ErrUnknownJob
		},
	}
}

func TestHealth(t *testing.T) {
	scheduler := &mockScheduler{running: true, tasks: []jobs.TaskStatus{{Name: "athlete_sync", State: jobs.StateArmed}}}
	handler := newTestServer(defaultRunner(), scheduler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.True(t, body.SchedulerRunning)
	require.Len(t, body.Jobs, 2)
	assert.True(t, body.Jobs[0].Enabled)
	assert.False(t, body.Jobs[1].Enabled)
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, jobs.StateArmed, body.Tasks[0].State)
}

func TestHealth_WithoutScheduler(t *testing.T) {
	handler := newTestServer(defaultRunner(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body api.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.SchedulerRunning)
	assert.Empty(t, body.Tasks)
}

func TestListJobs(t *testing.T) {
	handler := newTestServer(defaultRunner(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	var body api.JobsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Data, 2)
}

func TestTriggerJob(t *testing.T) {
	tests := []struct {
		name        string
		job         string
		wantStatus  int
		wantSuccess bool
		wantMessage string
	}{
		{name: "success", job: "log_cleanup", wantStatus: http.StatusOK, wantSuccess: true},
		{name: "already running", job: "athlete_sync", wantStatus: http.StatusConflict, wantMessage: "job is already running"},
		{name: "unknown", job: "odds_sync", wantStatus: http.StatusNotFound, wantMessage: "unknown job"},
		{name: "handler error", job: "broken", wantStatus: http.StatusInternalServerError, wantMessage: "roster fetch failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := newTestServer(defaultRunner(), nil)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/"+tt.job+"/trigger", nil))

			require.Equal(t, tt.wantStatus, rec.Code)
			var body api.Response
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantSuccess, body.Success)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, body.Message)
			}
		})
	}
}

func TestTriggerJob_ResultPayload(t *testing.T) {
	handler := newTestServer(defaultRunner(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/jobs/log_cleanup/trigger", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data api.TriggerResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "log_cleanup", body.Data.Job)
	assert.NotEmpty(t, body.Data.RequestID)
	assert.Equal(t, body.Data.RequestID, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, map[string]interface{}{"deleted": float64(4)}, body.Data.Result)
}

func TestTriggerJob_RequiresPost(t *testing.T) {
	handler := newTestServer(defaultRunner(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/log_cleanup/trigger", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	handler := newTestServer(defaultRunner(), nil)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/jobs/log_cleanup/trigger", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}
