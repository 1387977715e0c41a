package availability

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/decorstudio/platform/services/booking-service/internal/model"
)

// RedisCache keeps day grids under <prefix>:slots:<date> for ttl. Grids
// depend on the clock through the minimum notice, so ttl bounds how stale a
// cached "available" can get; the write path re-checks regardless.
type RedisCache struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration, prefix string) *RedisCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "booking"
	}
	return &RedisCache{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) key(date string) string {
	return c.prefix + ":slots:" + date
}

func (c *RedisCache) Get(ctx context.Context, date string) ([]model.Slot, bool, error) {
	raw, err := c.rdb.Get(ctx, c.key(date)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var slots []model.Slot
	if err := json.Unmarshal(raw, &slots); err != nil {
		return nil, false, err
	}
	return slots, true, nil
}

func (c *RedisCache) Set(ctx context.Context, date string, slots []model.Slot) error {
	raw, err := json.Marshal(slots)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.key(date), raw, c.ttl).Err()
}

func (c *RedisCache) Invalidate(ctx context.Context, dates ...string) error {
	if len(dates) > 0 {
		keys := make([]string, 0, len(dates))
		for _, d := range dates {
			keys = append(keys, c.key(d))
		}
		return c.rdb.Del(ctx, keys...).Err()
	}

	var keys []string
	iter := c.rdb.Scan(ctx, 0, c.prefix+":slots:*", 200).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}
