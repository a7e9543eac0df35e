package api

import (
	"time"

	"github.com/trackmeet/core/pkg/jobs"
)

// HealthResponse represents the health check response
type HealthResponse struct {
	Status           string            `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
	Jobs             []jobs.JobInfo    `json:"jobs"`
	SchedulerRunning bool              `json:"scheduler_running"`
	Tasks            []jobs.TaskStatus `json:"tasks,omitempty"`
}

// JobsResponse lists the jobs that can be triggered by hand
type JobsResponse struct {
	Data []jobs.JobInfo `json:"data"`
}

// TriggerResponse is returned after a manual job run
type TriggerResponse struct {
	Job        string      `json:"job"`
	RequestID  string      `json:"request_id"`
	DurationMS int64       `json:"duration_ms"`
	Result     interface{} `json:"result,omitempty"`
}

// Response represents a general API response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Message string      `json:"message,omitempty"`
}
