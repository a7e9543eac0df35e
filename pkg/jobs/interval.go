package jobs

import (
	"strings"
	"time"

	"github.com/trackmeet/core/pkg/logger"
)

// Symbolic schedule tokens
const (
	ScheduleHourly = "hourly"
	ScheduleDaily  = "daily"
	ScheduleWeekly = "weekly"
)

var intervals = map[string]time.Duration{
	ScheduleHourly: time.Hour,
	ScheduleDaily:  24 * time.Hour,
	ScheduleWeekly: 7 * 24 * time.Hour,
}

// ResolveInterval maps a schedule token to its fixed interval. Unknown tokens
// fall back to daily with a warning.
func ResolveInterval(token string, log *logger.Logger) time.Duration {
	if d, ok := intervals[normalizeToken(token)]; ok {
		return d
	}

	if log != nil {
		log.Warn().
			Str("action", "unknown_schedule").
			Str("schedule", token).
			Str("fallback", ScheduleDaily).
			Msg("Unknown schedule token, falling back to daily")
	}
	return intervals[ScheduleDaily]
}

// IsKnownInterval reports whether token is one of the symbolic schedules
func IsKnownInterval(token string) bool {
	_, ok := intervals[normalizeToken(token)]
	return ok
}

func normalizeToken(token string) string {
	return strings.ToLower(strings.TrimSpace(token))
}
