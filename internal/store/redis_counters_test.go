package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/yangwenmai/reviewer/internal/model"
)

// Set TEST_REDIS_ADDR to run against a real server.
func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set, skipping redis integration test")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rdb.Close() })
	require.NoError(t, rdb.Ping(context.Background()).Err())
	return rdb
}

func TestRedisCountersConcurrent(t *testing.T) {
	rdb := newTestRedis(t)
	ctx := context.Background()
	rc := NewRedisCounters(rdb)
	user := "test-" + uuid.NewString()
	t.Cleanup(func() { rdb.Del(context.Background(), redisCountersKey(user)) })

	const k = 10
	got := make([]int64, k)
	var g errgroup.Group
	for i := 0; i < k; i++ {
		g.Go(func() error {
			_, err := rc.UpdateCounters(ctx, user, func(c *model.Counters) error {
				n, err := c.Next(model.FeatureExplain)
				got[i] = n
				return err
			})
			return err
		})
	}
	require.NoError(t, g.Wait())
	require.ElementsMatch(t, []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got)

	fields, err := rdb.HGetAll(ctx, redisCountersKey(user)).Result()
	require.NoError(t, err)
	require.Equal(t, "10", fields["aiCounter"])
	require.Equal(t, "0", fields["acronymCounter"])
}
