package lockout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "disposisi:lockout:"

// RedisStore shares lockout state between instances. The failure counter
// expires with its window and the lock marker expires with the lock.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func failuresKey(key string) string { return redisKeyPrefix + key + ":failures" }
func lockedKey(key string) string   { return redisKeyPrefix + key + ":locked" }

func (s *RedisStore) Get(ctx context.Context, key string) (*State, error) {
	pipe := s.client.Pipeline()
	count := pipe.Get(ctx, failuresKey(key))
	locked := pipe.Get(ctx, lockedKey(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("load lockout state: %w", err)
	}

	failures, err := count.Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("parse failure count: %w", err)
	}
	until, err := parseUnixMilli(locked)
	if err != nil {
		return nil, err
	}
	if failures == 0 && until == nil {
		return nil, nil
	}
	return &State{Key: key, FailureCount: failures, LockedUntil: until}, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, window time.Duration) (*State, error) {
	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, failuresKey(key))
	pipe.ExpireNX(ctx, failuresKey(key), window)
	ttl := pipe.PTTL(ctx, failuresKey(key))
	locked := pipe.Get(ctx, lockedKey(key))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("record login failure: %w", err)
	}

	until, err := parseUnixMilli(locked)
	if err != nil {
		return nil, err
	}
	state := &State{Key: key, FailureCount: int(incr.Val()), LockedUntil: until}
	if remaining := ttl.Val(); remaining > 0 {
		state.WindowStart = now.Add(remaining - window)
	}
	return state, nil
}

func (s *RedisStore) Lock(ctx context.Context, key string, now, until time.Time) error {
	ttl := until.Sub(now)
	if ttl <= 0 {
		return nil
	}
	if err := s.client.Set(ctx, lockedKey(key), until.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("lock login: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, failuresKey(key), lockedKey(key)).Err(); err != nil {
		return fmt.Errorf("clear lockout state: %w", err)
	}
	return nil
}

func parseUnixMilli(cmd *redis.StringCmd) (*time.Time, error) {
	raw, err := cmd.Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load lock marker: %w", err)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse lock marker: %w", err)
	}
	t := time.UnixMilli(ms).UTC()
	return &t, nil
}
