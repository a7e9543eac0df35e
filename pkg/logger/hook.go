package logger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EntryWriter stores a single log entry
type EntryWriter interface {
	WriteEntry(ctx context.Context, level, message string) error
}

type persistedEntry struct {
	level   string
	message string
}

// PersistHook copies log events at or above a minimum level into an
// EntryWriter. Writes happen on a background goroutine; when the buffer is
// full new entries are dropped so logging never blocks the caller.
type PersistHook struct {
	writer  EntryWriter
	min     zerolog.Level
	timeout time.Duration
	entries chan persistedEntry
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
}

// NewPersistHook starts the background writer
func NewPersistHook(writer EntryWriter, min zerolog.Level, buffer int) *PersistHook {
	if buffer <= 0 {
		buffer = 256
	}
	h := &PersistHook{
		writer:  writer,
		min:     min,
		timeout: 5 * time.Second,
		entries: make(chan persistedEntry, buffer),
	}
	h.wg.Add(1)
	go h.loop()
	return h
}

// Run implements zerolog.Hook
func (h *PersistHook) Run(e *zerolog.Event, level zerolog.Level, msg string) {
	if level < h.min || level == zerolog.NoLevel || msg == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	select {
	case h.entries <- persistedEntry{level: level.String(), message: msg}:
	default:
	}
}

// Close flushes buffered entries and stops the writer. Events logged after
// Close are discarded.
func (h *PersistHook) Close() {
	h.mu.Lock()
	if !h.closed {
		h.closed = true
		close(h.entries)
	}
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *PersistHook) loop() {
	defer h.wg.Done()
	for entry := range h.entries {
		ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
		// a failed write cannot be logged without re-entering the hook
		_ = h.writer.WriteEntry(ctx, entry.level, entry.message)
		cancel()
	}
}

// WithHook returns a copy of the logger that runs hook on every event
func (l *Logger) WithHook(hook zerolog.Hook) *Logger {
	logger := l.Logger.Hook(hook)
	return &Logger{&logger}
}
