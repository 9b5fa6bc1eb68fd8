package access

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "beacon:ratelimit:"

// RedisLimiter shares fixed-window counters between instances. The first
// INCR in a window sets the key's expiry, so the window starts with the
// first request and the counter vanishes once it ends.
type RedisLimiter struct {
	rdb    *goredis.Client
	limit  int
	period time.Duration
}

func NewRedisLimiter(ctx context.Context, addr string, limit int, period time.Duration) (*RedisLimiter, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisLimiter{rdb: rdb, limit: limit, period: period}, nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := redisKeyPrefix + key
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr rate counter: %w", err)
	}
	if n == 1 {
		if err := l.rdb.PExpire(ctx, k, l.period).Err(); err != nil {
			return false, fmt.Errorf("set rate window: %w", err)
		}
	} else if ttl, err := l.rdb.PTTL(ctx, k).Result(); err == nil && ttl < 0 {
		// a crash between INCR and PEXPIRE would otherwise pin the key forever
		_ = l.rdb.PExpire(ctx, k, l.period).Err()
	}
	return n <= int64(l.limit), nil
}

func (l *RedisLimiter) Close() error {
	return l.rdb.Close()
}
