// Package tiered implements a two-level (L1 + L2) cache adapter.
package tiered

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Strob0t/circulation/internal/port/cache"
)

// Cache combines an in-process L1 with a shared L2. Reads prefer L1 and
// backfill it from L2. An unreachable L2 reads as a miss so that a remote
// outage degrades to uncached behaviour instead of failing requests.
type Cache struct {
	l1       cache.Cache
	l2       cache.Cache
	l1Expire time.Duration
}

// New creates a tiered cache. l1Expire bounds how long a value backfilled
// from L2 stays in L1.
func New(l1, l2 cache.Cache, l1Expire time.Duration) *Cache {
	return &Cache{l1: l1, l2: l2, l1Expire: l1Expire}
}

func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	val, found, err := c.l1.Get(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("l1 get: %w", err)
	}
	if found {
		return val, true, nil
	}

	val, found, err = c.l2.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "l2 cache unavailable, treating as miss", "error", err)
		return nil, false, nil
	}
	if !found {
		return nil, false, nil
	}
	if err := c.l1.Set(ctx, key, val, c.l1Expire); err != nil {
		slog.WarnContext(ctx, "l1 backfill failed", "error", err)
	}
	return val, true, nil
}

// Set writes L1 and then L2. The L1 copy lives at most l1Expire.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.l1.Set(ctx, key, value, min(ttl, c.l1Expire)); err != nil {
		return fmt.Errorf("l1 set: %w", err)
	}
	if err := c.l2.Set(ctx, key, value, ttl); err != nil {
		return fmt.Errorf("l2 set: %w", err)
	}
	return nil
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	if err := c.l1.Delete(ctx, key); err != nil {
		return fmt.Errorf("l1 delete: %w", err)
	}
	if err := c.l2.Delete(ctx, key); err != nil {
		return fmt.Errorf("l2 delete: %w", err)
	}
	return nil
}
