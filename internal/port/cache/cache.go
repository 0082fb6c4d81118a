// Package cache defines the byte-oriented cache port shared by policy
// resolution and idempotent replay.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache stores opaque values under string keys.
//
// A miss is (nil, false, nil), never an error. A non-positive ttl on Set
// means the implementation's default lifetime. Delete of an absent key is
// not an error.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

var keyEscaper = strings.NewReplacer("%", "%25", ":", "%3A")

// Key builds a tenant-scoped key "namespace:tenant:part:...". Colons inside
// tenant or parts are escaped so distinct inputs never share a key.
func Key(namespace, tenant string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	b.WriteByte(':')
	b.WriteString(keyEscaper.Replace(tenant))
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(keyEscaper.Replace(p))
	}
	return b.String()
}
