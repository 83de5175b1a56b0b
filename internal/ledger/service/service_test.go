package service_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"japa/internal/ledger/service"
	"japa/internal/ledger/store/aggregate"
	"japa/internal/ledger/store/event"
	"japa/internal/platform/clock"
	id "japa/pkg/domain"
	dErrors "japa/pkg/domain-errors"
)

var testStart = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *service.Service
	store *event.InMemoryStore
	cache *aggregate.InMemoryCache
	clk   *clock.Fake
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := event.NewInMemoryStore()
	cache := aggregate.NewInMemoryCache()
	clk := clock.NewFake(testStart)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		svc:   service.New(store, cache, clk, time.UTC, logger, nil),
		store: store,
		cache: cache,
		clk:   clk,
	}
}

func (f *fixture) record(t *testing.T, profileID id.ProfileID, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := f.svc.RecordRepetition(context.Background(), profileID, id.SourceManual, "")
		require.NoError(t, err)
	}
}

func TestRecordRepetition(t *testing.T) {
	ctx := context.Background()

	t.Run("returns updated totals synchronously", func(t *testing.T) {
		f := newFixture(t)

		for i := 1; i <= 5; i++ {
			totals, err := f.svc.RecordRepetition(ctx, "mala-user", id.SourceManual, "")
			require.NoError(t, err)
			assert.Equal(t, int64(i), totals.LifetimeCount)
			assert.Equal(t, int64(i), totals.TodayCount)
		}

		lifetime, err := f.svc.LifetimeCount(ctx, "mala-user")
		require.NoError(t, err)
		assert.Equal(t, int64(5), lifetime)
	})

	t.Run("rejects invalid profile before touching the log", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.RecordRepetition(ctx, "", id.SourceManual, "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidProfile))

		profiles, err := f.store.Profiles(ctx)
		require.NoError(t, err)
		assert.Empty(t, profiles, "nothing recorded for an invalid profile")
	})

	t.Run("rejects unknown source", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.RecordRepetition(ctx, "p", id.Source("webhook"), "")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	t.Run("same dedup key counts once", func(t *testing.T) {
		f := newFixture(t)

		first, err := f.svc.RecordRepetition(ctx, "p", id.SourceAudio, "detection-7")
		require.NoError(t, err)
		assert.Equal(t, int64(1), first.LifetimeCount)

		retry, err := f.svc.RecordRepetition(ctx, "p", id.SourceAudio, "detection-7")
		require.NoError(t, err)
		assert.Equal(t, int64(1), retry.LifetimeCount, "retry must not double count")
		assert.Equal(t, int64(1), retry.TodayCount)
	})

	t.Run("profiles never mix", func(t *testing.T) {
		f := newFixture(t)
		f.record(t, "alice", 3)
		f.record(t, "bob", 1)

		aliceCount, err := f.svc.LifetimeCount(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, int64(3), aliceCount)

		bobCount, err := f.svc.LifetimeCount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, int64(1), bobCount)
	})

	t.Run("concurrent burst loses nothing", func(t *testing.T) {
		f := newFixture(t)

		const workers = 8
		const perWorker = 25
		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < perWorker; j++ {
					_, err := f.svc.RecordRepetition(ctx, "burst", id.SourceManual, "")
					assert.NoError(t, err)
				}
			}()
		}
		wg.Wait()

		lifetime, err := f.svc.LifetimeCount(ctx, "burst")
		require.NoError(t, err)
		assert.Equal(t, int64(workers*perWorker), lifetime)
	})
}

func TestDayRollover(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	f.record(t, "p", 5)

	today, err := f.svc.TodayCount(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(5), today)

	// Midnight passes; today resets while lifetime keeps accumulating.
	f.clk.Advance(24 * time.Hour)

	today, err = f.svc.TodayCount(ctx, "p")
	require.NoError(t, err)
	assert.Zero(t, today, "new date starts at zero")

	f.record(t, "p", 2)

	stats, err := f.svc.Stats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(7), stats.LifetimeCount)
	assert.Equal(t, int64(2), stats.TodayCount)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 2, stats.ActiveDayCount)
}

func TestRecordRepetitionAt(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// A detection from late yesterday lands in yesterday's bucket.
	yesterday := testStart.Add(-12 * time.Hour)
	totals, err := f.svc.RecordRepetitionAt(ctx, "p", id.SourceAudio, "det-1", yesterday)
	require.NoError(t, err)
	assert.Equal(t, int64(1), totals.LifetimeCount)
	assert.Zero(t, totals.TodayCount)

	days, err := f.svc.ActiveDays(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, []id.Day{"2025-03-09"}, days)
}

func TestReadsOnEmptyProfile(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	lifetime, err := f.svc.LifetimeCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, lifetime)

	today, err := f.svc.TodayCount(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, today)

	days, err := f.svc.ActiveDays(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, days)

	stats, err := f.svc.Stats(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, stats.LifetimeCount)
	assert.Zero(t, stats.CurrentStreak)
	assert.Zero(t, stats.DailyAverage)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	// Three consecutive days of practice: 4, 2, and 6 repetitions.
	f.record(t, "p", 4)
	f.clk.Advance(24 * time.Hour)
	f.record(t, "p", 2)
	f.clk.Advance(24 * time.Hour)
	f.record(t, "p", 6)

	stats, err := f.svc.Stats(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.LifetimeCount)
	assert.Equal(t, int64(6), stats.TodayCount)
	assert.Equal(t, int64(12), stats.WeekCount)
	assert.Equal(t, 4.0, stats.DailyAverage)
	assert.Equal(t, 3, stats.CurrentStreak)
	assert.Equal(t, 3, stats.LongestStreak)
	assert.Equal(t, 3, stats.ActiveDayCount)
}
