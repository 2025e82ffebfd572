package cacheinfra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/goliatone/go-object-cache/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestRedisConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultRedisConfig().Validate())

	cfg := DefaultRedisConfig()
	cfg.Addr = ""
	assert.Error(t, cfg.Validate())

	cfg = DefaultRedisConfig()
	cfg.Prefix = "app*"
	assert.Error(t, cfg.Validate())

	cfg = DefaultRedisConfig()
	cfg.DB = -1
	assert.Error(t, cfg.Validate())
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := DefaultRedisConfig()
	cfg.Addr = mr.Addr()

	client, err := NewRedisClient(cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())
}

func TestRedisStore_FetchMissing(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "test")

	rec, ttl, err := store.Fetch(context.Background(), "courses:1")
	require.NoError(t, err)
	assert.Empty(t, rec)
	assert.Less(t, ttl, time.Duration(0))
}

func TestRedisStore_FillStoresHash(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	ctx := context.Background()

	rec, outcome, err := store.Fill(ctx, "courses:1", func(context.Context) (cache.Record, time.Duration, error) {
		return cache.Record{"id": "1", "name": "Go"}, time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, cache.FillStored, outcome)
	assert.Equal(t, "Go", rec["name"])

	assert.Equal(t, "Go", mr.HGet("test:courses:1", "name"))
	assert.Equal(t, time.Hour, mr.TTL("test:courses:1"))

	calls := 0
	rec, outcome, err = store.Fill(ctx, "courses:1", func(context.Context) (cache.Record, time.Duration, error) {
		calls++
		return cache.Record{"name": "other"}, time.Hour, nil
	})
	require.NoError(t, err)
	assert.Equal(t, cache.FillExisting, outcome)
	assert.Equal(t, "Go", rec["name"])
	assert.Zero(t, calls)
}

func TestRedisStore_FillConflict(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	t.Run("writer replaced key during load", func(t *testing.T) {
		rec, outcome, err := store.Fill(ctx, "courses:1", func(context.Context) (cache.Record, time.Duration, error) {
			_, err := store.Replace(ctx, "courses:1", cache.Record{"name": "new"}, time.Hour, cache.Version{})
			require.NoError(t, err)
			return cache.Record{"name": "old"}, time.Hour, nil
		})
		require.NoError(t, err)
		assert.Equal(t, cache.FillExisting, outcome)
		assert.Equal(t, "new", rec["name"])
	})

	t.Run("writer deleted key during load", func(t *testing.T) {
		rec, outcome, err := store.Fill(ctx, "courses:2", func(context.Context) (cache.Record, time.Duration, error) {
			require.NoError(t, client.HSet(ctx, "courses:2", "name", "racer").Err())
			require.NoError(t, client.Del(ctx, "courses:2").Err())
			return cache.Record{"name": "old"}, time.Hour, nil
		})
		require.NoError(t, err)
		assert.Equal(t, cache.FillConflict, outcome)
		assert.Equal(t, "old", rec["name"])

		n, err := client.Exists(ctx, "courses:2").Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestRedisStore_ReplaceVersion(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	ctx := context.Background()
	v := func(n int64) cache.Version { return cache.Version{Field: "version", Value: n} }

	ok, err := store.Replace(ctx, "courses:1", cache.Record{"name": "a", "version": "2", "extra": "x"}, time.Hour, v(2))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Replace(ctx, "courses:1", cache.Record{"name": "stale", "version": "1"}, time.Hour, v(1))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, "a", mr.HGet("test:courses:1", "name"))

	ok, err = store.Replace(ctx, "courses:1", cache.Record{"name": "b", "version": "3"}, 2*time.Hour, v(3))
	require.NoError(t, err)
	assert.True(t, ok)

	rec, ttl, err := store.Fetch(ctx, "courses:1")
	require.NoError(t, err)
	assert.Equal(t, cache.Record{"name": "b", "version": "3"}, rec)
	assert.Equal(t, 2*time.Hour, ttl)
}

func TestRedisStore_ReplaceOverNull(t *testing.T) {
	_, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	_, err := store.Replace(ctx, "courses:1", cache.Record{"name": cache.NullValue, "version": cache.NullValue}, time.Minute, cache.Version{})
	require.NoError(t, err)

	ok, err := store.Replace(ctx, "courses:1", cache.Record{"name": "a", "version": "1"}, time.Hour, cache.Version{Field: "version", Value: 1})
	require.NoError(t, err)
	assert.True(t, ok)

	rec, _, err := store.Fetch(ctx, "courses:1")
	require.NoError(t, err)
	assert.False(t, rec.IsNull())
}

func TestRedisStore_Refresh(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "")
	ctx := context.Background()

	_, err := store.Replace(ctx, "courses:1", cache.Record{"name": "a"}, 2*time.Minute, cache.Version{})
	require.NoError(t, err)
	_, err = store.Replace(ctx, "courses:2", cache.Record{"name": cache.NullValue}, 30*time.Second, cache.Version{})
	require.NoError(t, err)

	ok, err := store.Refresh(ctx, "courses:1", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "above low-water mark")

	mr.FastForward(90 * time.Second)

	ok, err = store.Refresh(ctx, "courses:1", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL("courses:1"))

	ok, err = store.Refresh(ctx, "courses:2", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "null records are not refreshed")

	ok, err = store.Refresh(ctx, "courses:404", time.Hour, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Expiry(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test")
	ctx := context.Background()

	_, err := store.Replace(ctx, "courses:1", cache.Record{"name": cache.NullValue}, time.Minute, cache.Version{})
	require.NoError(t, err)

	mr.FastForward(61 * time.Second)

	rec, _, err := store.Fetch(ctx, "courses:1")
	require.NoError(t, err)
	assert.Empty(t, rec)
}

func TestRedisStore_DeletePrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	store := NewRedisStore(client, "test").WithScanCount(1)
	ctx := context.Background()

	for _, key := range []string{"courses:1", "courses:1:lessons:1", "courses:1:lessons:2", "courses:10"} {
		_, err := store.Replace(ctx, key, cache.Record{"id": key}, time.Hour, cache.Version{})
		require.NoError(t, err)
	}

	n, err := store.DeletePrefix(ctx, cache.ChildPrefix("courses:1"))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	assert.True(t, mr.Exists("test:courses:1"))
	assert.True(t, mr.Exists("test:courses:10"))
	assert.False(t, mr.Exists("test:courses:1:lessons:1"))

	n, err = store.Delete(ctx, "courses:1", "courses:404")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `a\*b\?c\[d\]`, escapeGlob("a*b?c[d]"))
	assert.Equal(t, "courses:1:", escapeGlob("courses:1:"))
}
