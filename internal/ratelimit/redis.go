package ratelimit

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter keeps attempt counters in Redis so every serving instance
// draws from the same budget. Failure counting is a fixed window: the counter
// key gets its TTL on the first hit. The block is a separate key whose
// remaining TTL is the retry-after surfaced to callers.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    Config
}

var _ Limiter = (*RedisLimiter)(nil)

func NewRedisLimiter(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{client: client, cfg: cfg}
}

func (l *RedisLimiter) Check(ctx context.Context, key Key) (Decision, error) {
	ttl, err := l.client.PTTL(ctx, blockKey(key)).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit check: %w", err)
	}
	// PTTL returns a negative duration when the key is absent or has no
	// expiry; either way there is no active block.
	if ttl > 0 {
		return Decision{RetryAfter: ttl}, nil
	}
	return Decision{Allowed: true}, nil
}

func (l *RedisLimiter) RecordAttempt(ctx context.Context, key Key, success bool) error {
	if success {
		if err := l.client.Del(ctx, attemptKey(key), blockKey(key)).Err(); err != nil {
			return fmt.Errorf("rate limit reset: %w", err)
		}
		return nil
	}

	// INCR is atomic, so two racing failures observe distinct counts and
	// exactly one of them crosses the threshold.
	count, err := l.client.Incr(ctx, attemptKey(key)).Result()
	if err != nil {
		return fmt.Errorf("rate limit increment: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, attemptKey(key), l.cfg.Window).Err(); err != nil {
			return fmt.Errorf("rate limit window: %w", err)
		}
	}

	if count >= int64(l.cfg.MaxAttempts) {
		// NX keeps an existing block's deadline; reaching the threshold
		// again does not extend it.
		err := l.client.SetNX(ctx, blockKey(key), 1, l.cfg.BlockFor).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("rate limit block: %w", err)
		}
	}
	return nil
}

// Attempts returns the current failure count for a key. Missing keys read as
// zero so the answer never reveals whether an account exists.
func (l *RedisLimiter) Attempts(ctx context.Context, key Key) (int, error) {
	count, err := l.client.Get(ctx, attemptKey(key)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("rate limit read: %w", err)
	}
	return int(count), nil
}

func attemptKey(key Key) string {
	return "authority:attempts:" + key.String()
}

func blockKey(key Key) string {
	return "authority:block:" + key.String()
}
