package aggregate

import (
	"context"
	"sync"

	id "japa/pkg/domain"
)

// InMemoryCache implements ledger.AggregateCache with process-local state.
// The single-process twin of RedisCache, used in tests and when REDIS_URL
// is unset.
type InMemoryCache struct {
	mu       sync.RWMutex
	profiles map[id.ProfileID]*profileAggregates
}

type profileAggregates struct {
	lifetime int64
	days     map[id.Day]int64
}

// NewInMemoryCache creates an empty in-memory aggregate cache.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{profiles: make(map[id.ProfileID]*profileAggregates)}
}

// Increment applies one committed event.
func (c *InMemoryCache) Increment(_ context.Context, profileID id.ProfileID, day id.Day) (int64, int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	agg := c.profiles[profileID]
	if agg == nil {
		agg = &profileAggregates{days: make(map[id.Day]int64)}
		c.profiles[profileID] = agg
	}
	agg.lifetime++
	agg.days[day]++
	return agg.lifetime, agg.days[day], nil
}

// Lifetime returns the cached lifetime count; found=false on a cold cache.
func (c *InMemoryCache) Lifetime(_ context.Context, profileID id.ProfileID) (int64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agg := c.profiles[profileID]
	if agg == nil {
		return 0, false, nil
	}
	return agg.lifetime, true, nil
}

// DayCount returns the bucket for one date, 0 if absent.
func (c *InMemoryCache) DayCount(_ context.Context, profileID id.ProfileID, day id.Day) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	agg := c.profiles[profileID]
	if agg == nil {
		return 0, nil
	}
	return agg.days[day], nil
}

// Days returns every day bucket for the profile.
func (c *InMemoryCache) Days(_ context.Context, profileID id.ProfileID) (map[id.Day]int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	days := make(map[id.Day]int64)
	if agg := c.profiles[profileID]; agg != nil {
		for day, count := range agg.days {
			days[day] = count
		}
	}
	return days, nil
}

// ReplaceAll overwrites the profile's aggregates with a rebuilt snapshot.
func (c *InMemoryCache) ReplaceAll(_ context.Context, profileID id.ProfileID, lifetime int64, days map[id.Day]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := make(map[id.Day]int64, len(days))
	for day, count := range days {
		copied[day] = count
	}
	c.profiles[profileID] = &profileAggregates{lifetime: lifetime, days: copied}
	return nil
}

// Invalidate discards the profile's aggregates entirely.
func (c *InMemoryCache) Invalidate(_ context.Context, profileID id.ProfileID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.profiles, profileID)
	return nil
}
