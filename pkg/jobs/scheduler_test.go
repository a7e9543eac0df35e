package jobs

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trackmeet/core/pkg/clock"
	"github.com/trackmeet/core/pkg/logger"
)

var schedulerStart = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type counter struct {
	n atomic.Int32
}

func (c *counter) handler(err error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		c.n.Add(1)
		return err
	}
}

func (c *counter) count() int {
	return int(c.n.Load())
}

func newTestScheduler() (*Scheduler, *clock.Fake) {
	fake := clock.NewFake(schedulerStart)
	return NewScheduler(fake, logger.Nop()), fake
}

func taskStatus(t *testing.T, s *Scheduler, name string) TaskStatus {
	t.Helper()
	for _, st := range s.Snapshot() {
		if st.Name == name {
			return st
		}
	}
	t.Fatalf("task %s not registered", name)
	return TaskStatus{}
}

// waitArmed waits until the fired task has finished and re-armed its timer
func waitArmed(t *testing.T, s *Scheduler, name string, runs int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := taskStatus(t, s, name)
		return st.Runs == runs && st.State == StateArmed
	}, waitFor, tick)
}

func TestScheduler_FiresAfterOneInterval(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: c.handler(nil), Enabled: true})
	s.Start()
	defer s.Stop()

	st := taskStatus(t, s, "sync")
	require.NotNil(t, st.NextRun)
	assert.Equal(t, schedulerStart.Add(time.Hour), *st.NextRun)

	fake.Advance(59 * time.Minute)
	assert.Equal(t, 0, c.count())

	fake.Advance(time.Minute)
	waitArmed(t, s, "sync", 1)
	assert.Equal(t, 1, c.count())
}

func TestScheduler_DuplicateRegistrationKeepsOneTimer(t *testing.T) {
	s, fake := newTestScheduler()
	var first, second counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: first.handler(nil), Enabled: true})
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: second.handler(nil), Enabled: true})
	s.Start()
	defer s.Stop()

	assert.Len(t, s.Snapshot(), 1)
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(time.Hour)
	waitArmed(t, s, "sync", 1)
	assert.Equal(t, 0, first.count())
	assert.Equal(t, 1, second.count())
}

func TestScheduler_FailedRunIsRetriedNextInterval(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "flaky", Schedule: "hourly", Handler: c.handler(errors.New("upstream down")), Enabled: true})
	s.Start()
	defer s.Stop()

	for i := 1; i <= 3; i++ {
		fake.Advance(time.Hour)
		waitArmed(t, s, "flaky", i)
	}

	st := taskStatus(t, s, "flaky")
	assert.Equal(t, 3, c.count())
	assert.Equal(t, 3, st.Failures)
	assert.Equal(t, "upstream down", st.LastError)
}

func TestScheduler_PanicIsContained(t *testing.T) {
	buf := &syncBuffer{}
	fake := clock.NewFake(schedulerStart)
	s := NewScheduler(fake, logger.NewWithWriter("test", buf))

	var calls atomic.Int32
	s.Register(Task{Name: "boom", Schedule: "hourly", Enabled: true, Handler: func(ctx context.Context) error {
		calls.Add(1)
		panic("nil roster")
	}})
	s.Start()
	defer s.Stop()

	fake.Advance(time.Hour)
	waitArmed(t, s, "boom", 1)
	fake.Advance(time.Hour)
	waitArmed(t, s, "boom", 2)

	assert.Equal(t, int32(2), calls.Load())
	assert.Contains(t, taskStatus(t, s, "boom").LastError, "nil roster")
	assert.Contains(t, buf.String(), `"stack"`)
}

func TestScheduler_StopCancelsPendingTimers(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: c.handler(nil), Enabled: true})
	s.Start()
	s.Stop()

	assert.False(t, s.Running())
	assert.Equal(t, 0, fake.Pending())

	fake.Advance(5 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.count())
	assert.Equal(t, StateIdle, taskStatus(t, s, "sync").State)
}

func TestScheduler_StopIsIdempotent(t *testing.T) {
	s, _ := newTestScheduler()
	s.Stop()
	s.Start()
	s.Stop()
	s.Stop()
	assert.False(t, s.Running())
}

func TestScheduler_NextRunMeasuredFromCompletion(t *testing.T) {
	s, fake := newTestScheduler()
	var calls atomic.Int32
	s.Register(Task{Name: "slow", Schedule: "daily", Enabled: true, Handler: func(ctx context.Context) error {
		calls.Add(1)
		fake.Advance(2 * time.Hour)
		return nil
	}})
	s.Start()
	defer s.Stop()

	fake.Advance(24 * time.Hour)
	waitArmed(t, s, "slow", 1)

	st := taskStatus(t, s, "slow")
	require.NotNil(t, st.NextRun)
	assert.Equal(t, schedulerStart.Add(50*time.Hour), *st.NextRun)
	assert.Equal(t, 2*time.Hour, st.LastDuration)

	fake.Advance(23 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())

	fake.Advance(time.Hour)
	waitArmed(t, s, "slow", 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestScheduler_NoOverlapWhileRunning(t *testing.T) {
	s, fake := newTestScheduler()
	release := make(chan struct{})
	var calls atomic.Int32
	s.Register(Task{Name: "long", Schedule: "hourly", Enabled: true, Handler: func(ctx context.Context) error {
		calls.Add(1)
		<-release
		return nil
	}})
	s.Start()
	defer s.Stop()

	fake.Advance(time.Hour)
	require.Eventually(t, func() bool {
		return taskStatus(t, s, "long").State == StateRunning
	}, waitFor, tick)

	fake.Advance(3 * time.Hour)
	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	waitArmed(t, s, "long", 1)
	assert.Equal(t, int32(1), calls.Load())
}

func TestScheduler_StopWhileRunningDoesNotRearm(t *testing.T) {
	s, fake := newTestScheduler()
	release := make(chan struct{})
	s.Register(Task{Name: "long", Schedule: "hourly", Enabled: true, Handler: func(ctx context.Context) error {
		<-release
		return nil
	}})
	s.Start()

	fake.Advance(time.Hour)
	require.Eventually(t, func() bool {
		return taskStatus(t, s, "long").State == StateRunning
	}, waitFor, tick)

	s.Stop()
	close(release)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	require.NoError(t, s.Wait(ctx))

	st := taskStatus(t, s, "long")
	assert.Equal(t, 1, st.Runs)
	assert.Equal(t, StateIdle, st.State)
	assert.Equal(t, 0, fake.Pending())
}

func TestScheduler_RestartWhileRunningDoesNotOverlap(t *testing.T) {
	s, fake := newTestScheduler()
	release := make(chan struct{})
	var active, maxActive, calls atomic.Int32
	s.Register(Task{Name: "long", Schedule: "hourly", Enabled: true, RunOnStart: true, Handler: func(ctx context.Context) error {
		calls.Add(1)
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		<-release
		active.Add(-1)
		return nil
	}})
	s.Start()
	defer s.Stop()

	fake.Advance(0)
	require.Eventually(t, func() bool {
		return taskStatus(t, s, "long").State == StateRunning
	}, waitFor, tick)

	s.Stop()
	s.Start()
	fake.Advance(0)
	fake.Advance(2 * time.Hour)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, StateRunning, taskStatus(t, s, "long").State)

	close(release)
	waitArmed(t, s, "long", 1)
	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(time.Hour)
	waitArmed(t, s, "long", 2)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_NextRunKeepsSubSecondOffset(t *testing.T) {
	start := schedulerStart.Add(900 * time.Millisecond)
	fake := clock.NewFake(start)
	s := NewScheduler(fake, logger.Nop())
	var c counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: c.handler(nil), Enabled: true})
	s.Start()
	defer s.Stop()

	st := taskStatus(t, s, "sync")
	require.NotNil(t, st.NextRun)
	assert.Equal(t, start.Add(time.Hour), *st.NextRun)

	fake.Advance(time.Hour - time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, c.count())

	fake.Advance(time.Millisecond)
	waitArmed(t, s, "sync", 1)
	assert.Equal(t, 1, c.count())
}

func TestScheduler_DisabledReplacementDoesNotRun(t *testing.T) {
	s, fake := newTestScheduler()
	var old, replacement counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: old.handler(nil), Enabled: true})
	s.Start()
	defer s.Stop()

	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: replacement.handler(nil), Enabled: false})

	fake.Advance(time.Hour)
	require.Eventually(t, func() bool {
		return taskStatus(t, s, "sync").State == StateIdle
	}, waitFor, tick)

	assert.Equal(t, 0, old.count())
	assert.Equal(t, 0, replacement.count())
	assert.Equal(t, 0, fake.Pending())

	fake.Advance(3 * time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, replacement.count())
}

func TestScheduler_StartTwiceWarns(t *testing.T) {
	buf := &syncBuffer{}
	fake := clock.NewFake(schedulerStart)
	s := NewScheduler(fake, logger.NewWithWriter("test", buf))

	var c counter
	s.Register(Task{Name: "sync", Schedule: "daily", Handler: c.handler(nil), Enabled: true})
	s.Start()
	s.Start()
	defer s.Stop()

	assert.Equal(t, 1, fake.Pending())
	assert.Contains(t, buf.String(), `"action":"start_ignored"`)
}

func TestScheduler_RestartRearms(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: c.handler(nil), Enabled: true})
	s.Start()
	s.Stop()
	s.Start()
	defer s.Stop()

	assert.Equal(t, 1, fake.Pending())
	fake.Advance(time.Hour)
	waitArmed(t, s, "sync", 1)
	assert.Equal(t, 1, c.count())
}

func TestScheduler_RunOnStart(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "eager", Schedule: "weekly", Handler: c.handler(nil), Enabled: true, RunOnStart: true})
	s.Start()
	defer s.Stop()

	fake.Advance(0)
	waitArmed(t, s, "eager", 1)

	st := taskStatus(t, s, "eager")
	require.NotNil(t, st.NextRun)
	assert.Equal(t, schedulerStart.Add(7*24*time.Hour), *st.NextRun)
}

func TestScheduler_DisabledTaskNotArmed(t *testing.T) {
	s, fake := newTestScheduler()
	var c counter
	s.Register(Task{Name: "off", Schedule: "hourly", Handler: c.handler(nil), Enabled: false})
	s.Start()
	defer s.Stop()

	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, StateIdle, taskStatus(t, s, "off").State)
}

func TestScheduler_RegisterAfterStartWaitsForNextStart(t *testing.T) {
	buf := &syncBuffer{}
	fake := clock.NewFake(schedulerStart)
	s := NewScheduler(fake, logger.NewWithWriter("test", buf))
	s.Start()
	defer s.Stop()

	var c counter
	s.Register(Task{Name: "late", Schedule: "hourly", Handler: c.handler(nil), Enabled: true})

	assert.Equal(t, 0, fake.Pending())
	assert.Equal(t, StateRegistered, taskStatus(t, s, "late").State)
	assert.Contains(t, buf.String(), `"action":"register_after_start"`)
}

func TestScheduler_TasksRunIndependently(t *testing.T) {
	s, fake := newTestScheduler()
	release := make(chan struct{})
	var fast counter
	s.Register(Task{Name: "blocked", Schedule: "daily", Enabled: true, Handler: func(ctx context.Context) error {
		<-release
		return nil
	}})
	s.Register(Task{Name: "fast", Schedule: "hourly", Handler: fast.handler(nil), Enabled: true})
	s.Start()
	defer func() {
		close(release)
		s.Stop()
	}()

	fake.Advance(24 * time.Hour)
	require.Eventually(t, func() bool {
		return taskStatus(t, s, "blocked").State == StateRunning && fast.count() == 1
	}, waitFor, tick)
}

func TestScheduler_HandlerContextCarriesJobLogger(t *testing.T) {
	buf := &syncBuffer{}
	fake := clock.NewFake(schedulerStart)
	s := NewScheduler(fake, logger.NewWithWriter("test", buf))
	s.Register(Task{Name: "ctx", Schedule: "hourly", Enabled: true, Handler: func(ctx context.Context) error {
		logger.WithContext(ctx, "probe").Info().Str("action", "probe").Msg("inside handler")
		return nil
	}})
	s.Start()
	defer s.Stop()

	fake.Advance(time.Hour)
	waitArmed(t, s, "ctx", 1)

	var probe string
	for _, line := range strings.Split(buf.String(), "\n") {
		if strings.Contains(line, `"action":"probe"`) {
			probe = line
		}
	}
	require.NotEmpty(t, probe)
	assert.Contains(t, probe, `"job_name":"ctx"`)
	assert.Contains(t, probe, `"request_id"`)
}

func TestScheduler_RegisterJob(t *testing.T) {
	s, _ := newTestScheduler()
	require.Error(t, s.RegisterJob(nil))

	job := NewLogCleanupJob(&fakeCleaner{}, nil, logger.Nop(), JobConfig{Enabled: true, Schedule: "weekly"}, 14)
	require.NoError(t, s.RegisterJob(job))

	st := taskStatus(t, s, "log_cleanup")
	assert.Equal(t, "weekly", st.Schedule)
	assert.True(t, st.Enabled)
}

func TestScheduler_ReplaceWhileArmedRunsNewDefinition(t *testing.T) {
	s, fake := newTestScheduler()
	var old, replacement counter
	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: old.handler(nil), Enabled: true})
	s.Start()
	defer s.Stop()

	s.Register(Task{Name: "sync", Schedule: "hourly", Handler: replacement.handler(nil), Enabled: true})
	assert.Equal(t, 1, fake.Pending())

	fake.Advance(time.Hour)
	waitArmed(t, s, "sync", 1)
	assert.Equal(t, 0, old.count())
	assert.Equal(t, 1, replacement.count())
}
