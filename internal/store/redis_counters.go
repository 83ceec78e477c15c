package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/yangwenmai/reviewer/internal/model"
)

// RedisCounters keeps per-user counters in a Redis hash and updates them with
// optimistic WATCH/MULTI transactions.
type RedisCounters struct {
	rdb         redis.UniversalClient
	maxAttempts int
}

// NewRedisCounters creates a counter backend on rdb.
func NewRedisCounters(rdb redis.UniversalClient) *RedisCounters {
	return &RedisCounters{rdb: rdb, maxAttempts: 20}
}

func redisCountersKey(userID string) string {
	return "users:" + userID + ":meta:counters"
}

// UpdateCounters applies fn to the user's counters. If another client touches
// the hash between read and write the attempt is discarded and fn runs again.
func (r *RedisCounters) UpdateCounters(ctx context.Context, userID string, fn func(*model.Counters) error) (model.Counters, error) {
	key := redisCountersKey(userID)
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		var out model.Counters
		err := r.rdb.Watch(ctx, func(tx *redis.Tx) error {
			fields, err := tx.HGetAll(ctx, key).Result()
			if err != nil {
				return err
			}
			c, err := model.CountersFromFields(fields)
			if err != nil {
				return err
			}
			if err := fn(&c); err != nil {
				return err
			}
			values := make([]any, 0, 8)
			for field, n := range c.Fields() {
				values = append(values, field, n)
			}
			_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
				p.HSet(ctx, key, values...)
				return nil
			})
			out = c
			return err
		}, key)
		if err == nil {
			return out, nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return model.Counters{}, err
		}
	}
	return model.Counters{}, fmt.Errorf("%w: %d attempts on %s", ErrTxContention, r.maxAttempts, key)
}
