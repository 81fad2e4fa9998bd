// Package schedule holds the date and timezone math shared by service
// selection and plansheet rendering.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidTimezone is returned for an unrecognised IANA zone identifier.
var ErrInvalidTimezone = errors.New("invalid timezone")

// Display formats.
const (
	// LongFormat is the header date line, e.g. "Sunday, March 9, 2025 9:00 AM".
	LongFormat = "Monday, January 2, 2006 3:04 PM"
	// ClockFormat is the per-row wall-clock time.
	ClockFormat = "15:04"
	// StampFormat is used in the version block.
	StampFormat = "Jan 2, 2006 3:04 PM"
)

// LoadLocation resolves an IANA zone name. "Local" and "" both map to
// time.Local; callers that require an explicit zone should check for the
// empty string themselves.
func LoadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidTimezone, name, err)
	}
	return loc, nil
}

// NextOccurrenceWindow returns the local-midnight start and the last instant
// of the next day on or after ref's date (in loc) that falls on day. When
// ref already is on day the window covers ref's own date.
//
// The window is built from calendar fields, so a day containing a DST
// transition is 23 or 25 hours long.
func NextOccurrenceWindow(ref time.Time, day time.Weekday, loc *time.Location) (start, end time.Time) {
	if loc == nil {
		loc = time.Local
	}
	local := ref.In(loc)
	ahead := (int(day) - int(local.Weekday()) + 7) % 7

	y, m, d := local.Date()
	start = time.Date(y, m, d+ahead, 0, 0, 0, 0, loc)
	next := time.Date(y, m, d+ahead+1, 0, 0, 0, 0, loc)
	return start, next.Add(-time.Nanosecond)
}

// ParseWeekday accepts full English weekday names or their three-letter
// abbreviations, case-insensitively.
func ParseWeekday(s string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for d := time.Sunday; d <= time.Saturday; d++ {
		name := strings.ToLower(d.String())
		if v == name || (len(v) == 3 && strings.HasPrefix(name, v)) {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("unknown weekday %q", s)
}

// Localize formats t in loc using layout. t itself is not modified.
func Localize(t time.Time, loc *time.Location, layout string) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(layout)
}

// RoundMinutes converts seconds to whole minutes, rounding half up.
func RoundMinutes(seconds int) int {
	if seconds <= 0 {
		return 0
	}
	return (seconds + 30) / 60
}

// Offset returns start advanced by the given number of seconds.
func Offset(start time.Time, seconds int) time.Time {
	return start.Add(time.Duration(seconds) * time.Second)
}
