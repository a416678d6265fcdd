package localtime

import (
	"fmt"
	"time"
)

// Normalizer converts between absolute timestamps and the shop-local
// "HH:mm" clock used for schedule comparisons. Every salon runs in a
// single configured zone; the zone is injected so tests can substitute
// another one.
type Normalizer struct {
	loc *time.Location
}

func New(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

func Load(name string) (Normalizer, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Normalizer{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return New(loc), nil
}

func (n Normalizer) Location() *time.Location {
	return n.loc
}

// ClockOf renders t as a zero-padded zone-local "HH:mm" string. The
// fixed width is what makes plain string comparison of clocks valid.
func (n Normalizer) ClockOf(t time.Time) string {
	return t.In(n.loc).Format("15:04")
}

// MinuteOf returns the zone-local minute of day (0..1439).
func (n Normalizer) MinuteOf(t time.Time) int {
	lt := t.In(n.loc)
	return lt.Hour()*60 + lt.Minute()
}

// ParseClock parses a zero-padded "HH:mm" string into a minute of day.
func ParseClock(clock string) (int, error) {
	parsed, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", clock, err)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// FormatMinute renders a minute of day as "HH:mm".
func FormatMinute(minute int) string {
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// ParseDate parses a zone-local calendar date ("2006-01-02") into the
// midnight instant of that date.
func (n Normalizer) ParseDate(date string) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02", date, n.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return t, nil
}

// At returns the absolute instant of the given minute of day on the
// zone-local date containing day.
func (n Normalizer) At(day time.Time, minute int) time.Time {
	ld := day.In(n.loc)
	return time.Date(ld.Year(), ld.Month(), ld.Day(), minute/60, minute%60, 0, 0, n.loc)
}

// Weekday returns the zone-local weekday of t.
func (n Normalizer) Weekday(t time.Time) time.Weekday {
	return t.In(n.loc).Weekday()
}
