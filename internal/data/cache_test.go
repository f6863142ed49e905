package data

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedWithoutRedisAlwaysLoads(t *testing.T) {
	d := &Data{log: log.NewHelper(log.NewStdLogger(io.Discard))}
	ctx := context.Background()

	calls := 0
	load := func() ([]int, error) {
		calls++
		return []int{1, 2}, nil
	}
	for i := 0; i < 2; i++ {
		v, err := cached(ctx, d, "mart:test", load)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2}, v)
	}
	assert.Equal(t, 2, calls)

	// no-op without a client
	invalidate(ctx, d)
}

func TestCachedPropagatesLoadError(t *testing.T) {
	d := &Data{log: log.NewHelper(log.NewStdLogger(io.Discard))}
	boom := errors.New("boom")

	_, err := cached(context.Background(), d, "mart:test", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
}

func TestVersionedKey(t *testing.T) {
	assert.Equal(t, "mart:top10_by_genre:0", versionedKey(cacheKeyTopByGenre, 0))
	assert.Equal(t, "mart:top10_by_genre:12", versionedKey(cacheKeyTopByGenre, 12))
}

// newRedisData connects to MOVIEFLIX_TEST_REDIS_ADDR and clears the generation key.
func newRedisData(t *testing.T) *Data {
	t.Helper()
	addr := os.Getenv("MOVIEFLIX_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("MOVIEFLIX_TEST_REDIS_ADDR not set")
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { _ = rdb.Close() })
	require.NoError(t, rdb.Del(context.Background(), cacheGenerationKey).Err())
	return &Data{rdb: rdb, cacheTTL: time.Minute, log: log.NewHelper(log.NewStdLogger(io.Discard))}
}

func TestCachedServesSecondReadFromRedis(t *testing.T) {
	d := newRedisData(t)
	ctx := context.Background()

	calls := 0
	load := func() ([]int, error) {
		calls++
		return []int{calls}, nil
	}
	first, err := cached(ctx, d, "mart:test", load)
	require.NoError(t, err)
	second, err := cached(ctx, d, "mart:test", load)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	invalidate(ctx, d)
	third, err := cached(ctx, d, "mart:test", load)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, third)
}

func TestCachedReadRacingInvalidateDoesNotPinStaleRows(t *testing.T) {
	d := newRedisData(t)
	ctx := context.Background()

	// The invalidation lands while the first read is still loading.
	stale, err := cached(ctx, d, "mart:test", func() (string, error) {
		invalidate(ctx, d)
		return "old", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "old", stale)

	fresh, err := cached(ctx, d, "mart:test", func() (string, error) { return "new", nil })
	require.NoError(t, err)
	assert.Equal(t, "new", fresh)
}
