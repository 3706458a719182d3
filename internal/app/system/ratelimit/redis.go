package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisCmdable interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCounter is a fixed-window Counter stored in Redis so limits hold
// across instances.
type RedisCounter struct {
	rdb    redisCmdable
	prefix string
	limit  int64
	window time.Duration
}

// NewRedisCounter counts under "<prefix>:rate_limit:<key>".
func NewRedisCounter(rdb redisCmdable, prefix string, limit int, window time.Duration) *RedisCounter {
	return &RedisCounter{rdb: rdb, prefix: prefix, limit: int64(limit), window: window}
}

func (c *RedisCounter) key(k string) string {
	return c.prefix + ":rate_limit:" + k
}

// Allow increments the counter, setting the TTL on the first hit.
func (c *RedisCounter) Allow(ctx context.Context, key string) (bool, error) {
	k := c.key(key)
	n, err := c.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := c.rdb.Expire(ctx, k, c.window).Err(); err != nil {
			return false, err
		}
	}
	return n <= c.limit, nil
}

func (c *RedisCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.key(key)).Err()
}
