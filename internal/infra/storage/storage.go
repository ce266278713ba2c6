// Package storage reads and writes image files and builds their access URLs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// ErrObjectNotFound is returned when a key has no stored object.
var ErrObjectNotFound = errors.New("storage: object not found")

// Storage is a blob store addressed by slash-separated keys.
type Storage interface {
	Save(ctx context.Context, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
	// URL returns a download reference for key.
	URL(ctx context.Context, key string) (string, error)
	// ObjectKey returns the backend's full key for key, including any prefix.
	ObjectKey(key string) string
}

// ThumbnailURLGenerator yields an access URL for the height-pixel rendition of storageKey.
type ThumbnailURLGenerator interface {
	Generate(ctx context.Context, storageKey string, height int) (string, error)
}

// ThumbnailKey is the key of the height-pixel rendition of key.
func ThumbnailKey(key string, height int) string {
	return fmt.Sprintf("%s@%d", key, height)
}
