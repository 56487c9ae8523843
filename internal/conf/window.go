package conf

import (
	"fmt"
	"log/slog"
	"time"
)

// Default attendance window applied when the configured one is malformed.
const (
	DefaultWindowStart = "08:00"
	DefaultWindowEnd   = "11:00"
)

// TimeOfDay is a wall-clock time within a day, independent of date.
type TimeOfDay struct {
	seconds int // seconds since midnight
}

// ParseTimeOfDay parses a HH:MM string into a TimeOfDay.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid HH:MM time %q: %w", s, err)
	}
	return TimeOfDay{seconds: t.Hour()*3600 + t.Minute()*60}, nil
}

// TimeOfDayFromClock extracts the time of day from a full timestamp.
func TimeOfDayFromClock(t time.Time) TimeOfDay {
	return TimeOfDay{seconds: t.Hour()*3600 + t.Minute()*60 + t.Second()}
}

// Before reports whether t is strictly earlier in the day than other.
func (t TimeOfDay) Before(other TimeOfDay) bool { return t.seconds < other.seconds }

// After reports whether t is strictly later in the day than other.
func (t TimeOfDay) After(other TimeOfDay) bool { return t.seconds > other.seconds }

// String renders the time of day in HH:MM form.
func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.seconds/3600, (t.seconds%3600)/60)
}

// Window is the configured [start, end] attendance interval.
type Window struct {
	Start TimeOfDay
	End   TimeOfDay
}

// AttendanceWindow resolves the configured window. Malformed values fall back
// to the 08:00-11:00 default with a logged warning; configuration problems
// are never fatal at startup.
func (s *Settings) AttendanceWindow() Window {
	start, err := ParseTimeOfDay(s.Attendance.Window.Start)
	if err != nil {
		slog.Warn("invalid attendance window start, using default",
			"configured", s.Attendance.Window.Start, "default", DefaultWindowStart, "error", err)
		start, _ = ParseTimeOfDay(DefaultWindowStart)
	}

	end, err := ParseTimeOfDay(s.Attendance.Window.End)
	if err != nil {
		slog.Warn("invalid attendance window end, using default",
			"configured", s.Attendance.Window.End, "default", DefaultWindowEnd, "error", err)
		end, _ = ParseTimeOfDay(DefaultWindowEnd)
	}

	return Window{Start: start, End: end}
}
