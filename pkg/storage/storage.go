package storage

import (
	"context"
	"io"
)

// Client is the durable-storage capability the media pipeline writes to.
// WriteStream copies the reader to durable storage under key and returns a
// locator the relay persists as the message's media_url; implementations must
// stream in bounded chunks, never materializing the whole object.
type Client interface {
	WriteStream(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	OpenStream(ctx context.Context, locator string) (io.ReadCloser, error)
}
