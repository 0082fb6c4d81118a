// Package cachedpolicy caches policy resolution in front of a
// lookup.Policies implementation.
package cachedpolicy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/cache"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

// Revisions reports the policy revision of the context's tenant. Every
// import bumps it.
type Revisions interface {
	PolicyRevision(ctx context.Context) (int64, error)
}

// Policies resolves through next and keeps each answer in c for ttl, keyed by
// tenant, policy revision and criteria. Cache failures fall through to next;
// errors from next are never cached.
//
// Known revisions are rechecked after ttl, or sooner when a
// circulation.policies.imported message arrives through HandleImported.
type Policies struct {
	next lookup.Policies
	revs Revisions
	c    cache.Cache
	ttl  time.Duration
	now  func() time.Time

	mu    sync.Mutex
	known map[string]revision
}

type revision struct {
	rev     int64
	checked time.Time
}

// New wraps next with a cache.
func New(next lookup.Policies, revs Revisions, c cache.Cache, ttl time.Duration) *Policies {
	return &Policies{
		next:  next,
		revs:  revs,
		c:     c,
		ttl:   ttl,
		now:   time.Now,
		known: make(map[string]revision),
	}
}

func (p *Policies) LoanPolicyFor(ctx context.Context, c policy.Criteria) (*policy.LoanPolicy, error) {
	return through(ctx, p, "loan", c, func() (*policy.LoanPolicy, error) {
		return p.next.LoanPolicyFor(ctx, c)
	})
}

func (p *Policies) RequestPolicyFor(ctx context.Context, c policy.Criteria) (*policy.RequestPolicy, error) {
	return through(ctx, p, "request", c, func() (*policy.RequestPolicy, error) {
		return p.next.RequestPolicyFor(ctx, c)
	})
}

// Observe records rev as the tenant's current revision. Older revisions are
// ignored, so replayed messages are harmless.
func (p *Policies) Observe(tenant string, rev int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.known[tenant]; ok && cur.rev > rev {
		return
	}
	p.known[tenant] = revision{rev: rev, checked: p.now()}
}

// HandleImported is a messagequeue.Handler for circulation.policies.imported.
func (p *Policies) HandleImported(ctx context.Context, _ string, data []byte) error {
	var msg messagequeue.PoliciesImportedPayload
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("decode policies imported: %w", err)
	}
	tenant := middleware.TenantFromContext(ctx)
	p.Observe(tenant, msg.Revision)
	slog.InfoContext(ctx, "policy revision observed", "revision", msg.Revision)
	return nil
}

// revision returns the tenant's revision, asking revs when it is unknown or
// older than ttl.
func (p *Policies) revision(ctx context.Context) (int64, error) {
	tenant := middleware.TenantFromContext(ctx)
	p.mu.Lock()
	cur, ok := p.known[tenant]
	p.mu.Unlock()
	if ok && p.now().Sub(cur.checked) < p.ttl {
		return cur.rev, nil
	}

	rev, err := p.revs.PolicyRevision(ctx)
	if err != nil {
		return 0, err
	}
	p.Observe(tenant, rev)
	return rev, nil
}

func through[T any](ctx context.Context, p *Policies, kind string, c policy.Criteria, load func() (*T, error)) (*T, error) {
	rev, err := p.revision(ctx)
	if err != nil {
		slog.WarnContext(ctx, "policy revision unavailable, bypassing cache", "error", err)
		return load()
	}
	k := key(ctx, kind, rev, c)

	if raw, ok, err := p.c.Get(ctx, k); err != nil {
		slog.WarnContext(ctx, "policy cache read failed", "key", k, "error", err)
	} else if ok {
		var v T
		if err := json.Unmarshal(raw, &v); err == nil {
			return &v, nil
		}
		slog.WarnContext(ctx, "policy cache entry corrupt", "key", k)
	}

	v, err := load()
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(v); err == nil {
		if err := p.c.Set(ctx, k, raw, p.ttl); err != nil {
			slog.WarnContext(ctx, "policy cache write failed", "key", k, "error", err)
		}
	}
	return v, nil
}

func key(ctx context.Context, kind string, rev int64, c policy.Criteria) string {
	return cache.Key("policy", middleware.TenantFromContext(ctx), kind, strconv.FormatInt(rev, 10),
		c.PatronGroupID, c.MaterialTypeID, c.LoanTypeID)
}
