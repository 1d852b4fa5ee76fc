// Package clock reads wall-clock time in a single fixed reference timezone,
// independent of the host machine's local zone.
package clock

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"
)

// DefaultTimezone is the reference timezone used when none is configured.
const DefaultTimezone = "Asia/Dhaka"

// DayLayout is the layout of a day key (calendar date in the reference zone).
const DayLayout = "2006-01-02"

// Reading is a point in time decomposed in the reference timezone.
type Reading struct {
	Time                 time.Time
	Hour                 int
	Minute               int
	Second               int
	MinutesSinceMidnight int
	Day                  string
}

// Clock supplies the current time in the reference timezone.
type Clock struct {
	loc    *time.Location
	source func() time.Time
}

// New creates a Clock that reads time from source and reports it in loc.
// A nil source means time.Now.
func New(loc *time.Location, source func() time.Time) *Clock {
	if loc == nil {
		loc = fallbackLocation()
	}
	if source == nil {
		source = time.Now
	}
	return &Clock{loc: loc, source: source}
}

// System returns a Clock backed by the real wall clock.
func System(loc *time.Location) *Clock {
	return New(loc, time.Now)
}

// LoadLocation resolves a timezone name. Unknown names fall back to a fixed
// UTC+6 zone so the scheduler keeps working on hosts without zoneinfo.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return fallbackLocation(), fmt.Errorf("loading timezone %q: %w", name, err)
	}
	return loc, nil
}

func fallbackLocation() *time.Location {
	return time.FixedZone("+06", 6*60*60)
}

// Location returns the reference timezone.
func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current time decomposed in the reference timezone.
func (c *Clock) Now() Reading {
	return c.Read(c.source())
}

// Read decomposes an arbitrary instant in the reference timezone.
func (c *Clock) Read(t time.Time) Reading {
	local := t.In(c.loc)
	return Reading{
		Time:                 local,
		Hour:                 local.Hour(),
		Minute:               local.Minute(),
		Second:               local.Second(),
		MinutesSinceMidnight: local.Hour()*60 + local.Minute(),
		Day:                  local.Format(DayLayout),
	}
}

// Today returns the current day key.
func (c *Clock) Today() string {
	return c.Now().Day
}

// DayOf returns the day key of t in the reference timezone.
func (c *Clock) DayOf(t time.Time) string {
	return t.In(c.loc).Format(DayLayout)
}

// TimeOfDay returns t's time of day as HH:MM in the reference timezone.
func (c *Clock) TimeOfDay(t time.Time) string {
	return t.In(c.loc).Format("15:04")
}

// At builds the instant for a day key and an HH:MM time in the reference
// timezone.
func (c *Clock) At(day, hhmm string) (time.Time, error) {
	d, err := time.ParseInLocation(DayLayout, day, c.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing day %q: %w", day, err)
	}
	minutes, _, err := ParseTimeOfDay(hhmm)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(d.Year(), d.Month(), d.Day(), minutes/60, minutes%60, 0, 0, c.loc), nil
}

// ParseTimeOfDay parses an "H:MM" or "HH:MM" 24-hour time and returns the
// minutes since midnight and the zero-padded form.
func ParseTimeOfDay(s string) (int, string, error) {
	s = strings.TrimSpace(s)
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, "", fmt.Errorf("invalid time of day %q: want HH:MM", s)
	}
	// Tolerate a trailing seconds component ("08:00:00").
	if sec := strings.Index(mm, ":"); sec >= 0 {
		mm = mm[:sec]
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return 0, "", fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || minute < 0 || minute > 59 || len(mm) != 2 {
		return 0, "", fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, fmt.Sprintf("%02d:%02d", hour, minute), nil
}

// FormatMinutes renders minutes since midnight as HH:MM.
func FormatMinutes(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
