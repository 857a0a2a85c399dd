package generic

import (
	"time"
)

// =============================================================================
// CLOCK - Injectable time source
// =============================================================================

// Clock returns the current time. Services take a Clock so tests can pin
// history timestamps.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns At, advancing by Step on each call when set.
type FixedClock struct {
	At   time.Time
	Step time.Duration
}

func (c *FixedClock) Now() time.Time {
	now := c.At
	c.At = c.At.Add(c.Step)
	return now
}

// =============================================================================
// DATE UTILITIES
// =============================================================================

const DateLayout = "2006-01-02"

// Date builds a UTC midnight date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// DateOf truncates t to its UTC date.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return Date(u.Year(), u.Month(), u.Day())
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// YearsSince returns full years between year and the year of at.
func YearsSince(year int, at time.Time) int {
	return at.Year() - year
}
