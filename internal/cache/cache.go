// Package cache provides the key/value store used to remember which Stripe
// webhook events have already been applied.
package cache

import (
	"context"
	"time"
)

// Cache defines the interface for caching services.
type Cache interface {
	// Get returns the stored value, or "" and no error if the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}
