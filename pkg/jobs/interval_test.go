package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trackmeet/core/pkg/logger"
)

func TestResolveInterval(t *testing.T) {
	tests := []struct {
		token string
		want  time.Duration
	}{
		{"hourly", time.Hour},
		{"daily", 24 * time.Hour},
		{"weekly", 7 * 24 * time.Hour},
		{" Weekly ", 7 * 24 * time.Hour},
		{"HOURLY", time.Hour},
		{"fortnightly", 24 * time.Hour},
		{"", 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveInterval(tt.token, logger.Nop()))
		})
	}
}

func TestResolveInterval_UnknownTokenWarns(t *testing.T) {
	buf := &syncBuffer{}
	got := ResolveInterval("monthly", logger.NewWithWriter("test", buf))

	assert.Equal(t, 24*time.Hour, got)
	assert.Contains(t, buf.String(), `"action":"unknown_schedule"`)
	assert.Contains(t, buf.String(), `"schedule":"monthly"`)
}

func TestIsKnownInterval(t *testing.T) {
	assert.True(t, IsKnownInterval("daily"))
	assert.True(t, IsKnownInterval("Hourly"))
	assert.False(t, IsKnownInterval("@every 1h"))
	assert.False(t, IsKnownInterval(""))
}
