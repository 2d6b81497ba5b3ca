package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func mediaKey(mediaURL string) string {
	return fmt.Sprintf("media:%s", mediaURL)
}

func (c *RedisCache) GetMediaID(ctx context.Context, mediaURL string) (string, bool, error) {
	val, err := c.rdb.Get(ctx, mediaKey(mediaURL)).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read media id from cache: %w", err)
	}
	return val, true, nil
}

func (c *RedisCache) StoreMediaID(ctx context.Context, mediaURL, metaMediaID string) error {
	if err := c.rdb.Set(ctx, mediaKey(mediaURL), metaMediaID, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store media id in cache: %w", err)
	}
	return nil
}
