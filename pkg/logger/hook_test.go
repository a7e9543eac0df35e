package logger

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	mu      sync.Mutex
	entries []string
}

func (w *recordingWriter) WriteEntry(ctx context.Context, level, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = append(w.entries, level+":"+message)
	return nil
}

func TestPersistHook_OnlyMinimumLevelAndAbove(t *testing.T) {
	writer := &recordingWriter{}
	hook := NewPersistHook(writer, zerolog.WarnLevel, 10)

	var buf bytes.Buffer
	log := NewWithWriter("test", &buf).WithHook(hook)

	log.Info().Str("action", "noise").Msg("not persisted")
	log.Warn().Str("action", "slow").Msg("cleanup slow")
	log.Error().Str("action", "failed").Msg("sync failed")
	hook.Close()

	require.Equal(t, []string{"warn:cleanup slow", "error:sync failed"}, writer.entries)
	assert.Contains(t, buf.String(), "not persisted", "stdout output is unaffected")
}

func TestPersistHook_DropsWhenClosed(t *testing.T) {
	writer := &recordingWriter{}
	hook := NewPersistHook(writer, zerolog.WarnLevel, 1)
	hook.Close()
	hook.Close()

	assert.NotPanics(t, func() {
		hook.Run(nil, zerolog.ErrorLevel, "late")
	})
	assert.Empty(t, writer.entries)
}
