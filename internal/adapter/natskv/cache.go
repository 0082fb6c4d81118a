// Package natskv implements the cache port using a NATS JetStream KV bucket
// as the shared L2 cache.
package natskv

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// Cache wraps a JetStream KeyValue bucket. Entry lifetime is the bucket TTL;
// the per-call ttl is ignored.
type Cache struct {
	kv jetstream.KeyValue
}

// New creates a NATS KV-backed cache.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv}
}

// encodeKey maps an arbitrary cache key onto the KV key alphabet
// ([-/_=.a-zA-Z0-9]).
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, encodeKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return entry.Value(), true, nil
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	_, err := c.kv.Put(ctx, encodeKey(key), value)
	return err
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, encodeKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}
