package generic

import (
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Coverage window of a contract
// =============================================================================

// Period is the coverage window [Start, End). Both bounds are dates (UTC
// midnight); coverage ends at the start of End.
//
// Examples:
//   - Annual motor policy: 2026-01-15 - 2027-01-15
//   - Travel cover: departure - return + 1 day
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewPeriod builds a period of the given months starting on start.
func NewPeriod(start time.Time, months int) Period {
	s := DateOf(start)
	return Period{Start: s, End: s.AddDate(0, months, 0)}
}

func (p Period) IsZero() bool { return p.Start.IsZero() && p.End.IsZero() }

// Validate checks both bounds are set and End is after Start.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return NewValidationError("period", "start and end are required")
	}
	if !p.End.After(p.Start) {
		return fmt.Errorf("%w: %s", ErrInvalidPeriod, p)
	}
	return nil
}

// Contains returns true if t falls within [Start, End).
func (p Period) Contains(t time.Time) bool {
	d := DateOf(t)
	return !d.Before(p.Start) && d.Before(p.End)
}

// Days returns the number of covered days.
func (p Period) Days() int {
	return DaysBetween(p.Start, p.End)
}

// Months returns the number of whole months covered.
func (p Period) Months() int {
	months := (p.End.Year()-p.Start.Year())*12 + int(p.End.Month()) - int(p.Start.Month())
	if p.End.Day() < p.Start.Day() {
		months--
	}
	return months
}

// String returns a string representation of the period.
func (p Period) String() string {
	return "[" + p.Start.Format(DateLayout) + ", " + p.End.Format(DateLayout) + ")"
}

// Renewal returns the period of the same length starting when p ends.
func (p Period) Renewal() Period {
	months := p.Months()
	if months > 0 && p.Start.AddDate(0, months, 0).Equal(p.End) {
		return Period{Start: p.End, End: p.End.AddDate(0, months, 0)}
	}
	return Period{Start: p.End, End: p.End.AddDate(0, 0, p.Days())}
}
