package service

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/oralexam/internal/config"
)

// RedisStore keeps live session snapshots, worker jobs and admin logins in Redis.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore creates a new RedisStore.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

// SaveState stores the snapshot of an attempt and publishes it to the monitor channel.
func (r *RedisStore) SaveState(ctx context.Context, attemptID string, payload []byte, ttl time.Duration) error {
	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, config.CacheKey.AttemptStateKey(attemptID), payload, ttl)
	pipe.Publish(ctx, config.CacheKey.ExamMonitorChannel(), payload)
	_, err := pipe.Exec(ctx)
	return err
}

// DropState removes the stored snapshot of an attempt.
func (r *RedisStore) DropState(ctx context.Context, attemptID string) error {
	return r.rdb.Del(ctx, config.CacheKey.AttemptStateKey(attemptID)).Err()
}

// LoadState returns the stored snapshot of an attempt, or nil when none is kept.
func (r *RedisStore) LoadState(ctx context.Context, attemptID string) ([]byte, error) {
	payload, err := r.rdb.Get(ctx, config.CacheKey.AttemptStateKey(attemptID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return payload, err
}

// ListStates returns every stored snapshot. Keys that expire between SCAN and
// MGET are skipped.
func (r *RedisStore) ListStates(ctx context.Context) ([][]byte, error) {
	var keys []string
	iter := r.rdb.Scan(ctx, 0, config.CacheKey.AttemptStatePattern(), 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	out := make([][]byte, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, []byte(s))
		}
	}
	return out, nil
}

// Enqueue appends a job to a worker queue.
func (r *RedisStore) Enqueue(ctx context.Context, queue string, payload []byte) error {
	return r.rdb.RPush(ctx, queue, payload).Err()
}

// Remember stores a marker key that expires after ttl.
func (r *RedisStore) Remember(ctx context.Context, key string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, "1", ttl).Err()
}

// Known reports whether a marker key is still present.
func (r *RedisStore) Known(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Forget removes a marker key.
func (r *RedisStore) Forget(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, key).Err()
}
