package aggregate

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "japa/pkg/domain"
)

func TestInMemoryCacheIncrement(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	lifetime, today, err := cache.Increment(ctx, "p", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lifetime)
	assert.Equal(t, int64(1), today)

	lifetime, today, err = cache.Increment(ctx, "p", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lifetime)
	assert.Equal(t, int64(2), today)

	// A new date starts its own bucket while lifetime keeps growing.
	lifetime, today, err = cache.Increment(ctx, "p", "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, int64(3), lifetime)
	assert.Equal(t, int64(1), today)
}

func TestInMemoryCacheColdReads(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	_, found, err := cache.Lifetime(ctx, "cold")
	require.NoError(t, err)
	assert.False(t, found)

	count, err := cache.DayCount(ctx, "cold", "2025-03-10")
	require.NoError(t, err)
	assert.Zero(t, count)

	days, err := cache.Days(ctx, "cold")
	require.NoError(t, err)
	assert.Empty(t, days)
}

func TestInMemoryCacheReplaceAll(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	_, _, err := cache.Increment(ctx, "p", "2025-03-01")
	require.NoError(t, err)

	rebuilt := map[id.Day]int64{"2025-03-09": 4, "2025-03-10": 2}
	require.NoError(t, cache.ReplaceAll(ctx, "p", 6, rebuilt))

	lifetime, found, err := cache.Lifetime(ctx, "p")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(6), lifetime)

	days, err := cache.Days(ctx, "p")
	require.NoError(t, err)
	assert.Equal(t, rebuilt, days)

	// The installed snapshot is a copy; mutating the input must not leak.
	rebuilt["2025-03-10"] = 99
	count, err := cache.DayCount(ctx, "p", "2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestInMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	_, _, err := cache.Increment(ctx, "p", "2025-03-10")
	require.NoError(t, err)
	require.NoError(t, cache.Invalidate(ctx, "p"))

	_, found, err := cache.Lifetime(ctx, "p")
	require.NoError(t, err)
	assert.False(t, found, "invalidated profile reads as cold")
}

func TestInMemoryCacheProfileIsolation(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	_, _, err := cache.Increment(ctx, "a", "2025-03-10")
	require.NoError(t, err)

	_, found, err := cache.Lifetime(ctx, "b")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInMemoryCacheConcurrentIncrements(t *testing.T) {
	ctx := context.Background()
	cache := NewInMemoryCache()

	const workers = 8
	const perWorker = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				_, _, err := cache.Increment(ctx, "burst", "2025-03-10")
				assert.NoError(t, err)
			}
		}()
	}
	wg.Wait()

	lifetime, found, err := cache.Lifetime(ctx, "burst")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, int64(workers*perWorker), lifetime, "no increment lost under concurrency")
}
