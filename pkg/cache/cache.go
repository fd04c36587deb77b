// Package cache holds the folder-listing caches used by the file source.
package cache

import (
	"context"
	"time"
)

// DefaultTTL bounds how stale a cached folder listing may get.
const DefaultTTL = time.Hour

// ListingCache stores JSON-encodable values by key. Get reports false on a
// miss.
type ListingCache interface {
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Invalidate(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}
