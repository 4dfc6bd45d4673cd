package weather

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Matches the DDHHMMZ issue group, e.g. "151853Z"
var issueTimeRe = regexp.MustCompile(`\b(\d{2})(\d{2})(\d{2})Z\b`)

// ParseIssueTime extracts the issue time of a METAR relative to now. The report
// only carries day-of-month, so it is placed in the current month with one day of
// tolerance either way. A day more than one ahead of today belongs to the previous
// month. A day more than one behind today only moves to the next month when that
// puts it within a day of now, i.e. a report already dated the 1st while the clock
// still reads the last day of the month.
func ParseIssueTime(metar string, now time.Time) (time.Time, error) {
	m := issueTimeRe.FindStringSubmatch(metar)
	if m == nil {
		return time.Time{}, fmt.Errorf("no issue time group in report")
	}

	day, _ := strconv.Atoi(m[1])
	hour, _ := strconv.Atoi(m[2])
	minute, _ := strconv.Atoi(m[3])
	if day < 1 || day > 31 || hour > 23 || minute > 59 {
		return time.Time{}, fmt.Errorf("invalid issue time group %q", m[0])
	}

	now = now.UTC()
	year, month := now.Year(), now.Month()
	switch today := now.Day(); {
	case day > today+1:
		year, month = shiftMonth(year, month, -1)
	case day < today-1:
		ny, nm := shiftMonth(year, month, 1)
		if next := time.Date(ny, nm, day, hour, minute, 0, 0, time.UTC); next.Day() == day && next.Sub(now) <= 24*time.Hour {
			return next, nil
		}
	}

	issued := time.Date(year, month, day, hour, minute, 0, 0, time.UTC)
	if issued.Day() != day {
		// e.g. day 31 in a 30 day month
		return time.Time{}, fmt.Errorf("day %d does not exist in %s %d", day, month, year)
	}
	return issued, nil
}

func shiftMonth(year int, month time.Month, delta int) (int, time.Month) {
	month += time.Month(delta)
	switch {
	case month < time.January:
		return year - 1, time.December
	case month > time.December:
		return year + 1, time.January
	}
	return year, month
}

// Matches the standard temperature/dewpoint group, e.g. " 22/10" or " M03/M05"
var tempGroupRe = regexp.MustCompile(`\s(M)?(\d{2})/(?:M)?\d{2}\b`)

// Matches the precise remark T-group, e.g. "T00561050"
var tempRemarkRe = regexp.MustCompile(`\bT([01])(\d{3})[01]\d{3}\b`)

// ParseTemperature extracts the temperature in Celsius from a raw METAR,
// preferring the remark T-group when present.
func ParseTemperature(metar string) (float64, bool) {
	if idx := strings.Index(metar, "RMK"); idx >= 0 {
		if m := tempRemarkRe.FindStringSubmatch(metar[idx:]); len(m) == 3 {
			if val, err := strconv.ParseFloat(m[2], 64); err == nil {
				val = val / 10.0
				if m[1] == "1" {
					val = -val
				}
				return val, true
			}
		}
	}

	if m := tempGroupRe.FindStringSubmatch(metar); len(m) == 3 {
		if val, err := strconv.ParseFloat(m[2], 64); err == nil {
			if m[1] == "M" {
				val = -val
			}
			return val, true
		}
	}

	return 0, false
}
