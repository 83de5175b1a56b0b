package event

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"japa/internal/ledger"
	id "japa/pkg/domain"
)

func newEvent(profileID id.ProfileID, occurredAt time.Time, dedupKey string) ledger.RepetitionEvent {
	return ledger.RepetitionEvent{
		ID:         id.NewEventID(),
		ProfileID:  profileID,
		Source:     id.SourceManual,
		OccurredAt: occurredAt,
		DedupKey:   dedupKey,
	}
}

func TestInMemoryStoreAppend(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("assigns increasing sequence numbers", func(t *testing.T) {
		for i := 0; i < 3; i++ {
			_, inserted, err := store.Append(ctx, newEvent("seq-profile", now, ""))
			require.NoError(t, err)
			assert.True(t, inserted)
		}

		events, err := store.ListByProfile(ctx, "seq-profile", ledger.Cursor{}, 10)
		require.NoError(t, err)
		require.Len(t, events, 3)
		assert.Less(t, events[0].Seq, events[1].Seq)
		assert.Less(t, events[1].Seq, events[2].Seq)
	})

	t.Run("same dedup key counts once", func(t *testing.T) {
		first := newEvent("dedup-profile", now, "retry-1")
		firstID, inserted, err := store.Append(ctx, first)
		require.NoError(t, err)
		require.True(t, inserted)

		secondID, inserted, err := store.Append(ctx, newEvent("dedup-profile", now.Add(time.Second), "retry-1"))
		require.NoError(t, err)
		assert.False(t, inserted)
		assert.Equal(t, firstID, secondID, "dedup hit returns the original event id")

		events, err := store.ListByProfile(ctx, "dedup-profile", ledger.Cursor{}, 10)
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})

	t.Run("dedup keys are scoped per profile", func(t *testing.T) {
		_, inserted, err := store.Append(ctx, newEvent("profile-a", now, "shared-key"))
		require.NoError(t, err)
		require.True(t, inserted)

		_, inserted, err = store.Append(ctx, newEvent("profile-b", now, "shared-key"))
		require.NoError(t, err)
		assert.True(t, inserted, "another profile may reuse the key")
	})

	t.Run("empty dedup key never collides", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			_, inserted, err := store.Append(ctx, newEvent("nokey-profile", now, ""))
			require.NoError(t, err)
			assert.True(t, inserted)
		}
	})
}

func TestInMemoryStoreListByProfile(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		_, _, err := store.Append(ctx, newEvent("p", base.Add(time.Duration(i)*time.Minute), ""))
		require.NoError(t, err)
	}

	t.Run("pages through the full history", func(t *testing.T) {
		first, err := store.ListByProfile(ctx, "p", ledger.Cursor{}, 2)
		require.NoError(t, err)
		require.Len(t, first, 2)

		cursor := ledger.Cursor{OccurredAt: first[1].OccurredAt, Seq: first[1].Seq}
		rest, err := store.ListByProfile(ctx, "p", cursor, 10)
		require.NoError(t, err)
		require.Len(t, rest, 3)
		assert.True(t, rest[0].OccurredAt.After(first[1].OccurredAt))
	})

	t.Run("equal timestamps break ties by sequence", func(t *testing.T) {
		same := time.Date(2025, 3, 11, 8, 0, 0, 0, time.UTC)
		firstID, _, err := store.Append(ctx, newEvent("ties", same, ""))
		require.NoError(t, err)
		secondID, _, err := store.Append(ctx, newEvent("ties", same, ""))
		require.NoError(t, err)

		events, err := store.ListByProfile(ctx, "ties", ledger.Cursor{}, 10)
		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, firstID, events[0].ID)
		assert.Equal(t, secondID, events[1].ID)
	})

	t.Run("unknown profile yields empty page", func(t *testing.T) {
		events, err := store.ListByProfile(ctx, "nobody", ledger.Cursor{}, 10)
		require.NoError(t, err)
		assert.Empty(t, events)
	})
}

func TestInMemoryStoreCountBetween(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	dayStart := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-time.Second, 0, 12 * time.Hour, 24*time.Hour - time.Second, 24 * time.Hour} {
		_, _, err := store.Append(ctx, newEvent("p", dayStart.Add(offset), ""))
		require.NoError(t, err)
	}

	count, err := store.CountBetween(ctx, "p", dayStart, dayStart.Add(24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "start inclusive, end exclusive")
}

func TestInMemoryStoreDayCounts(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()
	kolkata, err := time.LoadLocation("Asia/Kolkata")
	require.NoError(t, err)

	// 20:00 UTC is past midnight in Kolkata.
	evening := time.Date(2025, 3, 10, 20, 0, 0, 0, time.UTC)
	morning := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	_, _, err = store.Append(ctx, newEvent("p", evening, ""))
	require.NoError(t, err)
	_, _, err = store.Append(ctx, newEvent("p", morning, ""))
	require.NoError(t, err)

	utcDays, err := store.DayCounts(ctx, "p", time.UTC)
	require.NoError(t, err)
	assert.Equal(t, map[id.Day]int64{"2025-03-10": 2}, utcDays)

	localDays, err := store.DayCounts(ctx, "p", kolkata)
	require.NoError(t, err)
	assert.Equal(t, map[id.Day]int64{"2025-03-10": 1, "2025-03-11": 1}, localDays)
}

func TestInMemoryStoreProfiles(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryStore()

	profiles, err := store.Profiles(ctx)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	now := time.Now().UTC()
	for _, p := range []id.ProfileID{"beta", "alpha", "gamma"} {
		_, _, err := store.Append(ctx, newEvent(p, now, ""))
		require.NoError(t, err)
	}

	profiles, err = store.Profiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []id.ProfileID{"alpha", "beta", "gamma"}, profiles)
}
