// Package marker holds the ephemeral validity markers behind expiring links.
// A marker's presence is the only signal that a link may still be served.
package marker

import (
	"context"
	"time"
)

// Store is a key-value store with per-key TTL. Absence is not an error.
// A ttl <= 0 writes nothing: the key is already expired.
type Store interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
}
