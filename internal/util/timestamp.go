package util

import (
	"fmt"
	"strings"
	"time"
)

// Accepted ISO-8601 forms. Timestamps without an offset are read as UTC.
// Fractional seconds are accepted after the seconds field by time.Parse.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 date or date-time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized ISO-8601 timestamp %q", s)
}

// CalendarDaysBetween counts the UTC calendar-day boundaries between then and now.
// Two instants on the same UTC date yield 0 regardless of time of day.
func CalendarDaysBetween(then, now time.Time) int {
	ty, tm, td := then.UTC().Date()
	ny, nm, nd := now.UTC().Date()
	a := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	b := time.Date(ny, nm, nd, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// FormatPublished renders a publish date as "Jan 02, 2006".
func FormatPublished(iso string) (string, error) {
	t, err := ParseTimestamp(iso)
	if err != nil {
		return "", err
	}
	return t.Format("Jan 02, 2006"), nil
}

// FormatPostedAt renders a run time as stored in history records.
func FormatPostedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000-07:00")
}
