package domain

import (
	"time"

	dErrors "japa/pkg/domain-errors"
)

// Day is a calendar date in the ledger's bucketing timezone, formatted
// YYYY-MM-DD. It is the unit of "today", day buckets, and streak logic.
// Events carry UTC instants; a Day is derived from an instant plus the
// configured location, so re-bucketing under a new zone is always possible
// by replaying the event log.
type Day string

// DayOf buckets an instant into a calendar date in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	return Day(t.In(loc).Format(time.DateOnly))
}

// ParseDay validates and returns a Day.
func ParseDay(s string) (Day, error) {
	if _, err := time.Parse(time.DateOnly, s); err != nil {
		return "", dErrors.New(dErrors.CodeInvalidInput, "day must be formatted YYYY-MM-DD")
	}
	return Day(s), nil
}

// String returns the YYYY-MM-DD representation.
func (d Day) String() string {
	return string(d)
}

// IsNil returns true if the day is empty.
func (d Day) IsNil() bool {
	return d == ""
}

// time returns midnight UTC of the date. Days produced by DayOf or
// ParseDay always round-trip; a hand-built malformed Day yields the zero
// time, which Next/Prev/Sub treat as an empty day.
func (d Day) time() time.Time {
	t, err := time.Parse(time.DateOnly, string(d))
	if err != nil {
		return time.Time{}
	}
	return t
}

// Next returns the following calendar date.
func (d Day) Next() Day {
	return Day(d.time().AddDate(0, 0, 1).Format(time.DateOnly))
}

// Prev returns the preceding calendar date.
func (d Day) Prev() Day {
	return Day(d.time().AddDate(0, 0, -1).Format(time.DateOnly))
}

// DaysSince returns the number of whole days from other to d.
// Negative when other is after d.
func (d Day) DaysSince(other Day) int {
	return int(d.time().Sub(other.time()) / (24 * time.Hour))
}

// Before reports whether d sorts before other. Lexicographic order on the
// YYYY-MM-DD form matches chronological order.
func (d Day) Before(other Day) bool {
	return d < other
}
