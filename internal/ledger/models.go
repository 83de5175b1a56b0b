package ledger

import (
	"time"

	id "japa/pkg/domain"
)

// RepetitionEvent is one recorded increment: a manual tap or an
// audio-detected chant. Immutable once written; the event log is the only
// source of truth and every aggregate below it is a derivation.
type RepetitionEvent struct {
	ID        id.EventID
	ProfileID id.ProfileID
	Source    id.Source
	// OccurredAt is the UTC instant the repetition happened. Calendar
	// bucketing applies the configured zone at derivation time.
	OccurredAt time.Time
	// DedupKey is an optional client-generated idempotency key, unique per
	// profile. Empty means the caller guarantees at-most-once submission.
	DedupKey string
	// Seq is the insertion sequence within the store, assigned on append.
	// Breaks ordering ties between events with equal timestamps.
	Seq int64
}

// DayBucket is the derived per-profile count for one calendar date.
// Created lazily on the first event of a date, never deleted.
type DayBucket struct {
	Day   id.Day
	Count int64
}

// Totals is the synchronous answer to a record call, so the caller never
// needs a follow-up read.
type Totals struct {
	LifetimeCount int64
	TodayCount    int64
}

// Stats is the full read surface behind the stats cards.
type Stats struct {
	LifetimeCount  int64
	TodayCount     int64
	WeekCount      int64
	DailyAverage   float64
	CurrentStreak  int
	LongestStreak  int
	ActiveDayCount int
}

// Cursor marks a position in a profile's event sequence for restartable
// listing. The zero Cursor starts from the beginning.
type Cursor struct {
	OccurredAt time.Time
	Seq        int64
}

// ReconcileReport summarizes one reconciliation sweep across profiles.
type ReconcileReport struct {
	ProfilesChecked int `json:"profiles_checked"`
	Mismatches      int `json:"mismatches"`
}
