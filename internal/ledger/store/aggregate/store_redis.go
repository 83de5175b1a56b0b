package aggregate

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"

	id "japa/pkg/domain"
)

// Redis key layout: one hash per profile at japa:agg:<profile>, holding a
// "lifetime" field plus one "d:<YYYY-MM-DD>" field per day bucket. HINCRBY
// gives atomic increments and returns the new value, so the write path
// never re-reads what it just wrote.
const (
	keyPrefix     = "japa:agg:"
	lifetimeField = "lifetime"
	dayFieldPfx   = "d:"
)

// RedisCache implements ledger.AggregateCache on a shared Redis.
type RedisCache struct {
	client redis.Cmdable
}

// NewRedisCache creates a Redis-backed aggregate cache.
func NewRedisCache(client redis.Cmdable) *RedisCache {
	return &RedisCache{client: client}
}

func profileKey(profileID id.ProfileID) string {
	return keyPrefix + profileID.String()
}

func dayField(day id.Day) string {
	return dayFieldPfx + day.String()
}

// Increment applies one committed event atomically.
func (c *RedisCache) Increment(ctx context.Context, profileID id.ProfileID, day id.Day) (int64, int64, error) {
	key := profileKey(profileID)

	pipe := c.client.TxPipeline()
	lifetimeCmd := pipe.HIncrBy(ctx, key, lifetimeField, 1)
	todayCmd := pipe.HIncrBy(ctx, key, dayField(day), 1)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, 0, fmt.Errorf("increment aggregates: %w", err)
	}
	return lifetimeCmd.Val(), todayCmd.Val(), nil
}

// Lifetime returns the cached lifetime count; found=false on a cold cache.
func (c *RedisCache) Lifetime(ctx context.Context, profileID id.ProfileID) (int64, bool, error) {
	raw, err := c.client.HGet(ctx, profileKey(profileID), lifetimeField).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("get lifetime count: %w", err)
	}
	lifetime, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse lifetime count: %w", err)
	}
	return lifetime, true, nil
}

// DayCount returns the bucket for one date, 0 if absent.
func (c *RedisCache) DayCount(ctx context.Context, profileID id.ProfileID, day id.Day) (int64, error) {
	raw, err := c.client.HGet(ctx, profileKey(profileID), dayField(day)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get day count: %w", err)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse day count: %w", err)
	}
	return count, nil
}

// Days returns every day bucket for the profile.
func (c *RedisCache) Days(ctx context.Context, profileID id.ProfileID) (map[id.Day]int64, error) {
	fields, err := c.client.HGetAll(ctx, profileKey(profileID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get day buckets: %w", err)
	}

	days := make(map[id.Day]int64)
	for field, raw := range fields {
		dayStr, ok := strings.CutPrefix(field, dayFieldPfx)
		if !ok {
			continue
		}
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse day bucket %s: %w", field, err)
		}
		days[id.Day(dayStr)] = count
	}
	return days, nil
}

// ReplaceAll overwrites the profile's aggregates with a rebuilt snapshot.
// Delete and rewrite run in one transaction so readers never observe a
// half-built hash.
func (c *RedisCache) ReplaceAll(ctx context.Context, profileID id.ProfileID, lifetime int64, days map[id.Day]int64) error {
	key := profileKey(profileID)

	fields := make(map[string]interface{}, len(days)+1)
	fields[lifetimeField] = lifetime
	for day, count := range days {
		fields[dayField(day)] = count
	}

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace aggregates: %w", err)
	}
	return nil
}

// Invalidate discards the profile's aggregates entirely.
func (c *RedisCache) Invalidate(ctx context.Context, profileID id.ProfileID) error {
	if err := c.client.Del(ctx, profileKey(profileID)).Err(); err != nil {
		return fmt.Errorf("invalidate aggregates: %w", err)
	}
	return nil
}
