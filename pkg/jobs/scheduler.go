package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/logger"
)

// TaskState is the lifecycle state of a registered task
type TaskState string

const (
	StateRegistered TaskState = "registered"
	StateArmed      TaskState = "armed"
	StateRunning    TaskState = "running"
	StateIdle       TaskState = "idle"
)

// Task is a named recurring handler. Name is the registry key: registering
// the same name again replaces the definition.
type Task struct {
	Name       string
	Schedule   string
	Handler    func(ctx context.Context) error
	Enabled    bool
	RunOnStart bool
}

// TaskStatus is a point-in-time view of a task for health reporting
type TaskStatus struct {
	Name         string        `json:"name"`
	Schedule     string        `json:"schedule"`
	Enabled      bool          `json:"enabled"`
	State        TaskState     `json:"state"`
	Runs         int           `json:"runs"`
	Failures     int           `json:"failures"`
	LastRun      *time.Time    `json:"last_run,omitempty"`
	LastDuration time.Duration `json:"last_duration,omitempty"`
	LastError    string        `json:"last_error,omitempty"`
	NextRun      *time.Time    `json:"next_run,omitempty"`
}

type taskEntry struct {
	task         Task
	state        TaskState
	runs         int
	failures     int
	lastRun      time.Time
	lastDuration time.Duration
	lastErr      error
	nextRun      time.Time
}

// Scheduler runs each registered task on its fixed interval. A task's next
// firing is armed only after its handler returns, measured from completion,
// so a task never overlaps itself. Distinct tasks run independently.
type Scheduler struct {
	mu      sync.Mutex
	clock   clock.Clock
	logger  *logger.Logger
	tasks   map[string]*taskEntry
	timers  map[string]clock.Timer
	running bool
	// epoch changes on every Start so firings from a previous run are ignored
	epoch    uint64
	inFlight sync.WaitGroup
}

// NewScheduler creates a stopped scheduler
func NewScheduler(clk clock.Clock, log *logger.Logger) *Scheduler {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{
		clock:  clk,
		logger: log,
		tasks:  make(map[string]*taskEntry),
		timers: make(map[string]clock.Timer),
	}
}

// Register inserts or replaces a task by name. It never arms a timer: tasks
// registered after Start wait for the next Start, while a replaced task that
// is already armed keeps its timer and runs the new definition when it fires.
func (s *Scheduler) Register(task Task) {
	if task.Name == "" || task.Handler == nil {
		s.logger.Error().
			Str("action", "register_task_invalid").
			Str("task_name", task.Name).
			Msg("Ignoring task without name or handler")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, exists := s.tasks[task.Name]
	if exists {
		entry.task = task
	} else {
		s.tasks[task.Name] = &taskEntry{task: task, state: StateRegistered}
	}

	s.logger.Info().
		Str("action", "register_task").
		Str("task_name", task.Name).
		Str("schedule", task.Schedule).
		Bool("enabled", task.Enabled).
		Bool("run_on_start", task.RunOnStart).
		Bool("replaced", exists).
		Msg("Registered scheduled task")

	if s.running {
		msg := "Task registered while scheduler is running; it will be armed on the next start"
		if exists {
			msg = "Task replaced while scheduler is running; the next firing uses the new definition"
		}
		s.logger.Warn().
			Str("action", "register_after_start").
			Str("task_name", task.Name).
			Bool("replaced", exists).
			Msg(msg)
	}
}

// RegisterJob registers a Job under its own name and schedule
func (s *Scheduler) RegisterJob(job Job) error {
	if job == nil {
		return fmt.Errorf("job cannot be nil")
	}

	s.Register(Task{
		Name:       job.Name(),
		Schedule:   job.Schedule(),
		Handler:    job.Execute,
		Enabled:    job.Enabled(),
		RunOnStart: job.RunOnStart(),
	})
	return nil
}

// Start arms every enabled task. Calling it while running only logs a warning.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		s.logger.Warn().
			Str("action", "start_ignored").
			Msg("Scheduler already running")
		return
	}

	s.running = true
	s.epoch++

	armed := 0
	for _, name := range s.sortedNames() {
		entry := s.tasks[name]
		if entry.state == StateRunning {
			// a run from before the last Stop is still going; it re-arms on completion
			s.logger.Info().
				Str("action", "task_still_running").
				Str("task_name", name).
				Msg("Task still running, arming after it completes")
			continue
		}
		if !entry.task.Enabled {
			entry.state = StateIdle
			s.logger.Info().
				Str("action", "task_disabled").
				Str("task_name", name).
				Msg("Task disabled, not arming")
			continue
		}
		s.armLocked(name, entry, entry.task.RunOnStart)
		armed++
	}

	s.logger.Info().
		Str("action", "start").
		Int("task_count", len(s.tasks)).
		Int("armed_count", armed).
		Msg("Scheduler started")
}

// Stop cancels every pending timer. Handlers already running finish and are
// re-armed only if Start is called again before they return. Tasks stay
// registered and a later Start re-arms them.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	cancelled := 0
	for name, timer := range s.timers {
		if timer.Stop() {
			cancelled++
		}
		delete(s.timers, name)
	}
	for _, entry := range s.tasks {
		if entry.state == StateArmed {
			entry.state = StateIdle
			entry.nextRun = time.Time{}
		}
	}
	s.running = false

	s.logger.Info().
		Str("action", "stopped").
		Int("cancelled_timers", cancelled).
		Msg("Scheduler stopped")
}

// Wait blocks until handlers that were running when it was called return or
// ctx is done
func (s *Scheduler) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inFlight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether Start has been called without a matching Stop
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Snapshot returns the status of every registered task ordered by name
func (s *Scheduler) Snapshot() []TaskStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]TaskStatus, 0, len(s.tasks))
	for _, name := range s.sortedNames() {
		entry := s.tasks[name]
		status := TaskStatus{
			Name:         name,
			Schedule:     entry.task.Schedule,
			Enabled:      entry.task.Enabled,
			State:        entry.state,
			Runs:         entry.runs,
			Failures:     entry.failures,
			LastDuration: entry.lastDuration,
		}
		if !entry.lastRun.IsZero() {
			t := entry.lastRun
			status.LastRun = &t
		}
		if entry.lastErr != nil {
			status.LastError = entry.lastErr.Error()
		}
		if entry.state == StateArmed {
			t := entry.nextRun
			status.NextRun = &t
		}
		out = append(out, status)
	}
	return out
}

// armLocked arms the single timer of a task. s.mu must be held.
func (s *Scheduler) armLocked(name string, entry *taskEntry, immediate bool) {
	now := s.clock.Now()
	next := now
	if !immediate {
		// cron.Every normalizes the delay to whole seconds (minimum 1s); the
		// delay itself is measured from now, not from the truncated second
		schedule := cron.Every(ResolveInterval(entry.task.Schedule, s.logger))
		next = now.Add(schedule.Delay)
	}

	epoch := s.epoch
	entry.state = StateArmed
	entry.nextRun = next
	s.timers[name] = s.clock.AfterFunc(next.Sub(now), func() {
		go s.fire(name, epoch)
	})

	s.logger.Debug().
		Str("action", "task_armed").
		Str("task_name", name).
		Time("next_run", next).
		Msg("Armed task timer")
}

func (s *Scheduler) fire(name string, epoch uint64) {
	s.mu.Lock()
	entry, ok := s.tasks[name]
	if !ok || !s.running || s.epoch != epoch {
		s.mu.Unlock()
		return
	}
	delete(s.timers, name)
	if !entry.task.Enabled {
		entry.state = StateIdle
		entry.nextRun = time.Time{}
		s.mu.Unlock()
		s.logger.Info().
			Str("action", "task_disabled").
			Str("task_name", name).
			Msg("Task disabled since it was armed, not running")
		return
	}
	entry.state = StateRunning
	task := entry.task
	s.inFlight.Add(1)
	s.mu.Unlock()
	defer s.inFlight.Done()

	requestID := uuid.New().String()
	jobLogger := s.logger.WithRequestID(requestID).WithJob(name)
	ctx := jobLogger.ToContext(context.Background())

	jobLogger.LogJobStart(name, task.Schedule)
	start := s.clock.Now()

	err := invoke(ctx, task.Handler)

	completed := s.clock.Now()
	duration := completed.Sub(start)
	if err != nil {
		event := jobLogger.Error().
			Err(err).
			Str("action", "job_failed").
			Dur("duration", duration)
		if p, ok := err.(*panicError); ok {
			event = event.Str("stack", p.stack)
		}
		event.Msg("Scheduled task failed, will retry at next interval")
	} else {
		jobLogger.LogJobComplete(name, duration, 0, 0)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.runs++
	entry.lastRun = start
	entry.lastDuration = duration
	entry.lastErr = err
	if err != nil {
		entry.failures++
	}

	// a Start that happened during the run skipped this task, so it is armed
	// here whenever the scheduler is running and no timer exists yet
	_, armed := s.timers[name]
	if !s.running || armed || !entry.task.Enabled {
		entry.state = StateIdle
		if armed {
			entry.state = StateArmed
		}
		if !s.running {
			jobLogger.Info().
				Str("action", "task_not_rescheduled").
				Msg("Scheduler stopped while task was running")
		}
		return
	}
	s.armLocked(name, entry, false)
}

func (s *Scheduler) sortedNames() []string {
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

type panicError struct {
	value interface{}
	stack string
}

func (p *panicError) Error() string {
	return fmt.Sprintf("task panicked: %v", p.value)
}

// invoke runs handler and turns a panic into an error
func invoke(ctx context.Context, handler func(ctx context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &panicError{value: r, stack: string(debug.Stack())}
		}
	}()
	return handler(ctx)
}
