package timeutil

import (
	"fmt"
	"time"
)

// ParseTimestamp reads a platform-supplied RFC3339 date-time, which may carry
// anywhere from zero to nine digits of sub-second precision, and truncates it
// to whole seconds so the stored form is stable regardless of what the
// provider sent.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timeutil.ParseTimestamp: could not parse input value %q: %w", s, err)
	}

	return t.Truncate(time.Second), nil
}

// ParseTimestampOrNil is ParseTimestamp for optional fields; empty or
// unparseable input becomes nil rather than an error.
func ParseTimestampOrNil(s string) *time.Time {
	if s == "" {
		return nil
	}

	t, err := ParseTimestamp(s)
	if err != nil {
		return nil
	}

	return &t
}

func FormatTimestamp(t time.Time) string {
	return t.Truncate(time.Second).UTC().Format(time.RFC3339)
}
