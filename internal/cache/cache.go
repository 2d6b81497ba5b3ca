package cache

import (
	"context"
)

// MediaIDCache memoizes provider media IDs by media URL so the outbound send
// path can skip re-uploading an asset the provider already holds. Misses fall
// back to the Message table, so the cache is purely an optimization and a
// NoopCache is a valid deployment.
type MediaIDCache interface {
	GetMediaID(ctx context.Context, mediaURL string) (string, bool, error)
	StoreMediaID(ctx context.Context, mediaURL, metaMediaID string) error
}

type NoopCache struct{}

func (NoopCache) GetMediaID(ctx context.Context, mediaURL string) (string, bool, error) {
	return "", false, nil
}

func (NoopCache) StoreMediaID(ctx context.Context, mediaURL, metaMediaID string) error {
	return nil
}
