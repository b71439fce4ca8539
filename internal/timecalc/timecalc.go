package timecalc

import (
	"fmt"
	"time"
)

// DateLayout is the persisted reference date format.
const DateLayout = "2006-01-02"

// ClockLayout is the time-of-day format used by feeding rows.
const ClockLayout = "15:04"

// ParseDate parses a YYYY-MM-DD date at midnight in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", s)
	}
	return d, nil
}

// ParseClock parses a zero-padded 24-hour HH:MM value.
func ParseClock(s string) (hour, minute int, err error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return 0, 0, fmt.Errorf("invalid time %q: want HH:MM", s)
		}
	}
	hour = int(s[0]-'0')*10 + int(s[1]-'0')
	minute = int(s[3]-'0')*10 + int(s[4]-'0')
	if hour > 23 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid time %q: out of range", s)
	}
	return hour, minute, nil
}

// AbsoluteTimestamp places a day index and time of day on the calendar.
// Day 1 is the day of ref; seconds and nanoseconds are zeroed.
func AbsoluteTimestamp(ref time.Time, day, hour, minute int) time.Time {
	return time.Date(ref.Year(), ref.Month(), ref.Day()+day-1, hour, minute, 0, 0, ref.Location())
}

// AddWallClock adds d to t as if t were a naive wall-clock value, ignoring
// any daylight saving transition in t's location.
func AddWallClock(t time.Time, d time.Duration) time.Time {
	naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return naive.Add(d)
}

// DayIndex returns the 1-based day index of now relative to ref.
func DayIndex(ref, now time.Time) int {
	a := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours()/24) + 1
}

// FormatClock formats t as HH:MM.
func FormatClock(t time.Time) string {
	return t.Format(ClockLayout)
}

// FormatElapsed formats a non-negative duration as "2h 30m ago".
func FormatElapsed(d time.Duration) string {
	h := int64(d / time.Hour)
	m := int64(d % time.Hour / time.Minute)
	return fmt.Sprintf("%dh %dm ago", h, m)
}

// FormatDuration formats seconds as a human-readable string like "1h 40m" or "45m" or "30s".
func FormatDuration(seconds int64) string {
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	if m > 0 {
		return fmt.Sprintf("%dm", m)
	}
	return fmt.Sprintf("%ds", s)
}
