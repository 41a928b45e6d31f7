// Package dates parses the time arguments accepted by the CLI.
package dates

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	dateRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	daysRegex = regexp.MustCompile(`^(\d+)d$`)
)

// IsValidDate checks if a string is a valid YYYY-MM-DD date.
func IsValidDate(s string) bool {
	if !dateRegex.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// ParseDatetime parses an RFC3339 timestamp or a local YYYY-MM-DDTHH:MM[:SS].
func ParseDatetime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("invalid datetime: empty")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, format := range []string{"2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.ParseInLocation(format, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid datetime: %q", s)
}

// ParseSince parses a --since argument into the instant it names:
//   - "today" or "yesterday" (start of that day)
//   - a duration back from now: "90m", "6h", "3d"
//   - a date (YYYY-MM-DD, start of day) or a datetime
func ParseSince(arg string, now time.Time) (time.Time, error) {
	s := strings.ToLower(strings.TrimSpace(arg))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time argument")
	}

	switch s {
	case "today":
		return startOfDay(now), nil
	case "yesterday":
		return startOfDay(now).AddDate(0, 0, -1), nil
	}

	if m := daysRegex.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid day count %q", arg)
		}
		return now.AddDate(0, 0, -n), nil
	}
	if d, err := time.ParseDuration(s); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration must not be negative: %q", arg)
		}
		return now.Add(-d), nil
	}
	if IsValidDate(s) {
		return time.ParseInLocation("2006-01-02", s, now.Location())
	}
	if t, err := ParseDatetime(strings.TrimSpace(arg), now.Location()); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q, use today, yesterday, a duration (6h, 3d) or YYYY-MM-DD", arg)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
