package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrJobRunning is returned by a manual trigger while the job is already running
	ErrJobRunning = errors.New("job is already running")
	// ErrUnknownJob is returned when no job is registered under the requested name
	ErrUnknownJob = errors.New("unknown job")
)

// JobInfo describes a registered job for the admin API
type JobInfo struct {
	Name       string `json:"name"`
	Schedule   string `json:"schedule"`
	Enabled    bool   `json:"enabled"`
	RunOnStart bool   `json:"run_on_start"`
}

// Registry holds the jobs an operator may trigger by name
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]ManualJob
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{jobs: make(map[string]ManualJob)}
}

// Register adds a job. Names must be unique.
func (r *Registry) Register(job ManualJob) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.Name()]; exists {
		return fmt.Errorf("job %s already registered", job.Name())
	}
	r.jobs[job.Name()] = job
	return nil
}

// Get returns the job registered under name
func (r *Registry) Get(name string) (ManualJob, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[name]
	return job, ok
}

// Jobs returns every registered job ordered by name
func (r *Registry) Jobs() []ManualJob {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ManualJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name() < out[k].Name() })
	return out
}

// Status lists the registered jobs and their configuration
func (r *Registry) Status() []JobInfo {
	jobs := r.Jobs()
	out := make([]JobInfo, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, JobInfo{
			Name:       job.Name(),
			Schedule:   job.Schedule(),
			Enabled:    job.Enabled(),
			RunOnStart: job.RunOnStart(),
		})
	}
	return out
}

// Trigger runs the named job on demand, whether or not it is enabled for
// scheduling
func (r *Registry) Trigger(ctx context.Context, name string) (any, error) {
	job, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return job.RunManually(ctx)
}

// RegisterAll registers every job with the scheduler
func (r *Registry) RegisterAll(s *Scheduler) error {
	for _, job := range r.Jobs() {
		if err := s.RegisterJob(job); err != nil {
			return fmt.Errorf("failed to register job %s: %w", job.Name(), err)
		}
	}
	return nil
}
