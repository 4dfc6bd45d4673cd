package briefcache

import (
	"time"

	"github.com/yegors/flightbrief/internal/weather"
)

const (
	// RefreshMinute is the minute past the hour after which a new routine
	// METAR is expected
	RefreshMinute = 50

	// FreshnessWindow is how old a report may be at or after RefreshMinute
	FreshnessWindow = 15 * time.Minute

	// FreshTTL applies when the report is already the current one
	FreshTTL = time.Hour
)

// DecideTTL returns how long a briefing built from metar may be cached. Before
// RefreshMinute it lives until RefreshMinute. After that it is only cached when the
// report is from the current hour or less than FreshnessWindow old. ok is false
// when the briefing must not be cached.
func DecideTTL(now time.Time, metar string) (ttl time.Duration, ok bool) {
	now = now.UTC()
	if m := now.Minute(); m < RefreshMinute {
		return time.Duration(RefreshMinute-m) * time.Minute, true
	}

	issued, err := weather.ParseIssueTime(metar, now)
	if err != nil {
		return 0, false
	}

	sameHour := issued.Truncate(time.Hour).Equal(now.Truncate(time.Hour))
	if sameHour || now.Sub(issued) <= FreshnessWindow {
		return FreshTTL, true
	}
	return 0, false
}
