package util

import (
	"time"
)

// ParseDate tries YYYY-MM-DD, RFC3339, and RFC3339Nano. Returns (t, true) if any worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns default if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// DaysBetween returns whole days from `from` to `to`, truncated to day boundaries.
func DaysBetween(from, to time.Time) int {
	f := from.Truncate(24 * time.Hour)
	t := to.Truncate(24 * time.Hour)
	return int(t.Sub(f).Hours() / 24)
}
