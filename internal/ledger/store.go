package ledger

import (
	"context"
	"time"

	id "japa/pkg/domain"
)

// Stores are interface-driven to keep the ledger logic testable and to
// allow swapping in-memory and external persistence without rewiring
// business code.

// EventStore is durable, append-only persistence for repetition events,
// keyed by profile. Append must never silently drop an event: it either
// commits durably or fails with storage_unavailable so the caller can
// retry.
type EventStore interface {
	// Append writes the event. When the event carries a dedup key that was
	// already used for the profile, inserted is false and the stored
	// event's ID is returned; the log is unchanged.
	Append(ctx context.Context, event RepetitionEvent) (eventID id.EventID, inserted bool, err error)

	// ListByProfile returns up to limit events strictly after the cursor,
	// ordered by timestamp ascending with ties broken by insertion
	// sequence. Finite and restartable: callers page until an empty slice.
	ListByProfile(ctx context.Context, profileID id.ProfileID, after Cursor, limit int) ([]RepetitionEvent, error)

	// CountBetween counts events in [startInclusive, endExclusive).
	CountBetween(ctx context.Context, profileID id.ProfileID, startInclusive, endExclusive time.Time) (int64, error)

	// DayCounts buckets the profile's full history into calendar dates in
	// loc. The cheap rebuild source for a cold aggregate cache.
	DayCounts(ctx context.Context, profileID id.ProfileID, loc *time.Location) (map[id.Day]int64, error)

	// Profiles lists every profile with at least one event. Drives the
	// reconcile worker.
	Profiles(ctx context.Context) ([]id.ProfileID, error)
}

// AggregateCache holds the derived lifetime counter and day buckets per
// profile. It carries no independent truth: anything here can be discarded
// and rebuilt from the EventStore at any time.
type AggregateCache interface {
	// Increment applies one committed event: +1 lifetime, +1 on the day
	// bucket, creating the bucket if absent. Returns the new values so the
	// write path never re-reads what it just wrote.
	Increment(ctx context.Context, profileID id.ProfileID, day id.Day) (lifetime, today int64, err error)

	// Lifetime returns the cached lifetime count. found is false on a cold
	// cache, which signals the facade to rebuild.
	Lifetime(ctx context.Context, profileID id.ProfileID) (lifetime int64, found bool, err error)

	// DayCount returns the bucket for one date, 0 if absent.
	DayCount(ctx context.Context, profileID id.ProfileID, day id.Day) (int64, error)

	// Days returns every day bucket for the profile.
	Days(ctx context.Context, profileID id.ProfileID) (map[id.Day]int64, error)

	// ReplaceAll atomically overwrites the profile's aggregates with a
	// rebuilt snapshot.
	ReplaceAll(ctx context.Context, profileID id.ProfileID, lifetime int64, days map[id.Day]int64) error

	// Invalidate discards the profile's aggregates entirely.
	Invalidate(ctx context.Context, profileID id.ProfileID) error
}
