package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore is a filesystem-backed object store. Objects live under
// rootDir/<key>, locators are "<bucket>/<key>". Writes stream through a temp
// file and rename into place so a crashed transfer never leaves a readable
// partial object.
type LocalStore struct {
	rootDir string
	bucket  string
}

func NewLocalStore(rootDir, bucket string) (*LocalStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("storage root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{rootDir: rootDir, bucket: bucket}, nil
}

func (s *LocalStore) WriteStream(ctx context.Context, key string, r io.Reader, contentType string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}

	path := filepath.Join(s.rootDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return "", fmt.Errorf("failed to create object directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp object: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, &contextReader{ctx: ctx, r: r}); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close object: %w", err)
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("failed to finalize object: %w", err)
	}

	return s.bucket + "/" + key, nil
}

func (s *LocalStore) OpenStream(ctx context.Context, locator string) (io.ReadCloser, error) {
	key, ok := strings.CutPrefix(locator, s.bucket+"/")
	if !ok {
		return nil, fmt.Errorf("locator %q does not belong to bucket %q", locator, s.bucket)
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.rootDir, filepath.FromSlash(key)))
	if err != nil {
		return nil, fmt.Errorf("failed to open object: %w", err)
	}
	return f, nil
}

// IsLocator reports whether a media_url refers to this store rather than a
// public URL.
func (s *LocalStore) IsLocator(mediaURL string) bool {
	return strings.HasPrefix(mediaURL, s.bucket+"/")
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "..") {
		return fmt.Errorf("invalid object key: %q", key)
	}
	return nil
}

// contextReader aborts an in-flight copy when the context is cancelled, so a
// shutdown does not wait on a slow provider stream.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (cr *contextReader) Read(p []byte) (int, error) {
	if err := cr.ctx.Err(); err != nil {
		return 0, err
	}
	return cr.r.Read(p)
}
