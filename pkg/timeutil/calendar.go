package timeutil

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// TimeOfDay is a wall-clock threshold within a single day, with
// second-level resolution, used to gate calendar-triggered scans to a
// configured time of day (the scan_time policy).
type TimeOfDay struct {
	hour, minute, second int
}

// ParseTimeOfDay parses an "HH:MM" or "HH:MM:SS" string into a TimeOfDay.
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	layout := "15:04:05"
	if strings.Count(value, ":") == 1 {
		layout = "15:04"
	}
	parsed, err := time.Parse(layout, value)
	if err != nil {
		return TimeOfDay{}, errors.Wrapf(err, "invalid time of day: %s", value)
	}
	return TimeOfDay{hour: parsed.Hour(), minute: parsed.Minute(), second: parsed.Second()}, nil
}

// IsAfter reports whether now's wall-clock time is at or past the
// threshold (as syscheckd's OS_IsAfterTime does).
func (t TimeOfDay) IsAfter(now time.Time) bool {
	hour, minute, second := now.Clock()
	if hour != t.hour {
		return hour > t.hour
	}
	if minute != t.minute {
		return minute > t.minute
	}
	return second >= t.second
}

// DayMask is a bitmask of time.Weekday values, used to gate
// calendar-triggered scans to specific days of the week (the scan_day
// policy). A zero DayMask matches every day.
type DayMask uint8

// ParseDayMask parses a comma-separated list of day names ("monday",
// "tuesday", ...; case-insensitive) into a DayMask.
func ParseDayMask(value string) (DayMask, error) {
	var mask DayMask
	if strings.TrimSpace(value) == "" {
		return mask, nil
	}
	for _, name := range strings.Split(value, ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		day, ok := weekdaysByName[name]
		if !ok {
			return 0, errors.Errorf("unrecognized day of week: %s", name)
		}
		mask |= 1 << uint(day)
	}
	return mask, nil
}

// IsOnDay reports whether wday is included in the mask, or the mask is
// empty (matching every day), mirroring OS_IsonDay.
func (m DayMask) IsOnDay(wday time.Weekday) bool {
	if m == 0 {
		return true
	}
	return m&(1<<uint(wday)) != 0
}

var weekdaysByName = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}
