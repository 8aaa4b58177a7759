package types

import (
	"context"
)

// Cache is the type-erased view of a managed cache used by the lifecycle,
// health and admin layers.
type Cache interface {
	Name() string
	Len() int
	Capacity() int
	InvalidateAll(ctx context.Context) error
	Close(ctx context.Context) error
}

type CacheStats struct {
	Name     string `json:"name"`
	Entries  int    `json:"entries"`
	Capacity int    `json:"capacity"`
}
