// Package ratelimit implements ports.RateLimiter with fixed windows in Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wadjakorntonsri/linkshort/pkg/ports"
)

const keyPrefix = "ratelimit"

type RedisLimiter struct {
	client redis.Cmdable
}

func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return client, nil
}

func windowKey(scope, key string) string {
	return keyPrefix + ":" + scope + ":" + key
}

// Allow counts one hit for key in scope. The window starts with the first hit
// and the counter expires with it. When Redis is unreachable the request is
// allowed and the error returned for logging.
func (l *RedisLimiter) Allow(ctx context.Context, scope, key string, limit int, window time.Duration) (bool, int, error) {
	k := windowKey(scope, key)

	n, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return true, limit, err
	}
	if n == 1 {
		if err := l.client.Expire(ctx, k, window).Err(); err != nil {
			return true, limit, err
		}
	}

	remaining := limit - int(n)
	if remaining < 0 {
		return false, 0, nil
	}
	return true, remaining, nil
}

var _ ports.RateLimiter = (*RedisLimiter)(nil)
