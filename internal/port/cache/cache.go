// Package cache defines the port interface for the existence cache.
package cache

import (
	"context"
	"time"
)

// Cache is the port interface for short-lived key-value caching. The engine
// uses it to memoize externalId existence checks on the enqueue path.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
