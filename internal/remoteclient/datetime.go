package remoteclient

import (
	"fmt"
	"time"
)

// ParseDateTime accepts strict RFC3339 ("…+00:00") and the tracker's
// colonless offset form ("…+0000"), normalizing the latter by inserting a
// colon before the last two digits of the offset.
func ParseDateTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02T15:04:05.000-0700", s); err == nil {
		return t, nil
	}

	if fixed, ok := insertOffsetColon(s); ok {
		if t, err := time.Parse(time.RFC3339, fixed); err == nil {
			return t, nil
		}
		if t, err := time.Parse("2006-01-02T15:04:05.000-07:00", fixed); err == nil {
			return t, nil
		}
	}

	return time.Time{}, fmt.Errorf("remoteclient: unrecognized datetime %q", s)
}

// ParseDueDate parses a "YYYY-MM-DD" date, extending it to midnight UTC.
func ParseDueDate(s string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("remoteclient: unrecognized due date %q: %w", s, err)
	}
	return t.UTC(), nil
}

// insertOffsetColon rewrites a trailing "+HHMM"/"-HHMM" into "+HH:MM".
func insertOffsetColon(s string) (string, bool) {
	if len(s) < 5 {
		return "", false
	}
	tail := s[len(s)-5:]
	if tail[0] != '+' && tail[0] != '-' {
		return "", false
	}
	for _, c := range tail[1:] {
		if c < '0' || c > '9' {
			return "", false
		}
	}
	return s[:len(s)-2] + ":" + s[len(s)-2:], true
}
