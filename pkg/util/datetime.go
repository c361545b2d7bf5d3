package util

import "time"

const (
	DateTimeFormat = "2006-01-02 15:04:05"
)

// FormatDateTime renders t in loc using DateTimeFormat. A nil loc keeps t's own location.
func FormatDateTime(t time.Time, loc *time.Location) string {
	if loc != nil {
		t = t.In(loc)
	}
	return t.Format(DateTimeFormat)
}

// ParseDateTime parses a DateTimeFormat string as wall-clock time in loc (time.Local when nil).
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DateTimeFormat, s, loc)
}

// StartOfNextDay returns midnight of the day after t, in t's location.
func StartOfNextDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, t.Location())
}
