package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		assert.NoError(t, rdb.Close())
	})
	return NewRedisCache(rdb, time.Hour), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	_, ok, err := c.GetMediaID(ctx, "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.StoreMediaID(ctx, "https://cdn.example.com/a.jpg", "media-7"))

	id, ok, err := c.GetMediaID(ctx, "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "media-7", id)
}

func TestRedisCacheEntriesExpire(t *testing.T) {
	c, mr := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreMediaID(ctx, "https://cdn.example.com/a.jpg", "media-7"))

	mr.FastForward(2 * time.Hour)

	_, ok, err := c.GetMediaID(ctx, "https://cdn.example.com/a.jpg")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCacheKeysAreURLScoped(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.StoreMediaID(ctx, "https://cdn.example.com/a.jpg", "media-a"))
	require.NoError(t, c.StoreMediaID(ctx, "https://cdn.example.com/b.jpg", "media-b"))

	id, ok, err := c.GetMediaID(ctx, "https://cdn.example.com/b.jpg")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "media-b", id)
}

func TestNoopCache(t *testing.T) {
	var c MediaIDCache = NoopCache{}
	ctx := context.Background()

	require.NoError(t, c.StoreMediaID(ctx, "url", "id"))
	_, ok, err := c.GetMediaID(ctx, "url")
	require.NoError(t, err)
	assert.False(t, ok)
}
