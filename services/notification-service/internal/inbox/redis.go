package inbox

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisInbox marks events as seen with SET NX under <prefix>:inbox:<id>.
// Keys expire after ttl; the delivery log catches anything older.
type RedisInbox struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	prefix string
}

func NewRedisInbox(rdb redis.Cmdable, ttl time.Duration, prefix string) *RedisInbox {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	if prefix == "" {
		prefix = "notification"
	}
	return &RedisInbox{rdb: rdb, ttl: ttl, prefix: prefix}
}

func (i *RedisInbox) key(eventID string) string {
	return i.prefix + ":inbox:" + eventID
}

func (i *RedisInbox) Record(ctx context.Context, eventID, eventType string) (bool, error) {
	return i.rdb.SetNX(ctx, i.key(eventID), eventType, i.ttl).Result()
}

func (i *RedisInbox) Forget(ctx context.Context, eventID string) error {
	return i.rdb.Del(ctx, i.key(eventID)).Err()
}
