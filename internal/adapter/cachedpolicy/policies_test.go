package cachedpolicy_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/circulation/internal/adapter/cachedpolicy"
	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
)

type memCache struct {
	data map[string][]byte
	err  error
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	if m.err != nil {
		return nil, false, m.err
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.data[key] = value
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	delete(m.data, key)
	return nil
}

// countingPolicies resolves against the preset document and counts calls.
type countingPolicies struct {
	doc   policy.Document
	calls int
}

func (c *countingPolicies) LoanPolicyFor(_ context.Context, cr policy.Criteria) (*policy.LoanPolicy, error) {
	c.calls++
	lp, err := c.doc.ResolveLoanPolicy(cr)
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

func (c *countingPolicies) RequestPolicyFor(_ context.Context, cr policy.Criteria) (*policy.RequestPolicy, error) {
	c.calls++
	rp, err := c.doc.ResolveRequestPolicy(cr)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

// revisions serves fixed per-tenant revisions and counts reads.
type revisions struct {
	byTenant map[string]int64
	err      error
	reads    int
}

func (r *revisions) PolicyRevision(ctx context.Context) (int64, error) {
	r.reads++
	if r.err != nil {
		return 0, r.err
	}
	return r.byTenant[middleware.TenantFromContext(ctx)], nil
}

var criteria = policy.Criteria{PatronGroupID: "undergrad", MaterialTypeID: "dvd", LoanTypeID: "can-circulate"}

func setup() (*countingPolicies, *memCache, *cachedpolicy.Policies) {
	next, c, _, p := setupWithRevisions()
	return next, c, p
}

func setupWithRevisions() (*countingPolicies, *memCache, *revisions, *cachedpolicy.Policies) {
	d := policy.PresetDocument()
	d.Rules.Rules = []policy.Rule{{MaterialType: "dvd", LoanPolicy: "short-term", RequestPolicy: "allow-all"}}
	next := &countingPolicies{doc: d}
	c := &memCache{data: map[string][]byte{}}
	revs := &revisions{byTenant: map[string]int64{}}
	return next, c, revs, cachedpolicy.New(next, revs, c, time.Hour)
}

func TestCachesResolution(t *testing.T) {
	next, _, p := setup()
	ctx := middleware.WithTenant(context.Background(), "diku")

	for range 3 {
		lp, err := p.LoanPolicyFor(ctx, criteria)
		if err != nil {
			t.Fatal(err)
		}
		if lp.ID != "short-term" || !lp.Conditions.MaterialType {
			t.Fatalf("policy = %+v", lp)
		}
	}
	if next.calls != 1 {
		t.Errorf("resolved %d times, want 1", next.calls)
	}

	if _, err := p.RequestPolicyFor(ctx, criteria); err != nil {
		t.Fatal(err)
	}
	if next.calls != 2 {
		t.Errorf("request policy shared the loan policy entry")
	}
}

func TestKeyedByTenant(t *testing.T) {
	next, _, p := setup()
	_, _ = p.LoanPolicyFor(middleware.WithTenant(context.Background(), "a"), criteria)
	_, _ = p.LoanPolicyFor(middleware.WithTenant(context.Background(), "b"), criteria)
	if next.calls != 2 {
		t.Errorf("calls = %d, want one per tenant", next.calls)
	}
}

func TestErrorsNotCached(t *testing.T) {
	next, c, p := setup()
	next.doc.Rules.Fallback.LoanPolicy = "gone"
	ctx := context.Background()
	other := policy.Criteria{PatronGroupID: "staff", MaterialTypeID: "book"}

	if _, err := p.LoanPolicyFor(ctx, other); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(c.data) != 0 {
		t.Errorf("error result cached: %v", c.data)
	}
}

func TestCacheFailureFallsThrough(t *testing.T) {
	next, c, p := setup()
	c.err = errors.New("l1 down")
	if _, err := p.LoanPolicyFor(context.Background(), criteria); err != nil {
		t.Fatal(err)
	}
	if next.calls != 1 {
		t.Errorf("calls = %d", next.calls)
	}
}

func TestImportedRevisionRetiresEntries(t *testing.T) {
	next, _, revs, p := setupWithRevisions()
	ctx := middleware.WithTenant(context.Background(), "diku")

	_, _ = p.LoanPolicyFor(ctx, criteria)
	_, _ = p.LoanPolicyFor(ctx, criteria)
	if next.calls != 1 || revs.reads != 1 {
		t.Fatalf("calls = %d, revision reads = %d, want 1 and 1", next.calls, revs.reads)
	}

	if err := p.HandleImported(ctx, messagequeue.SubjectPoliciesImported, []byte(`{"revision":3}`)); err != nil {
		t.Fatal(err)
	}
	_, _ = p.LoanPolicyFor(ctx, criteria)
	if next.calls != 2 {
		t.Errorf("calls = %d, want 2 after a new revision", next.calls)
	}
	if revs.reads != 1 {
		t.Errorf("revision reads = %d, the message should have supplied it", revs.reads)
	}

	// A replayed older message does not roll the revision back.
	_ = p.HandleImported(ctx, messagequeue.SubjectPoliciesImported, []byte(`{"revision":2}`))
	_, _ = p.LoanPolicyFor(ctx, criteria)
	if next.calls != 2 {
		t.Errorf("calls = %d, want the revision 3 entry to be reused", next.calls)
	}

	// Other tenants are unaffected.
	other := middleware.WithTenant(context.Background(), "college")
	_, _ = p.LoanPolicyFor(other, criteria)
	_, _ = p.LoanPolicyFor(other, criteria)
	if next.calls != 3 {
		t.Errorf("calls = %d, want 3", next.calls)
	}
}

func TestHandleImportedRejectsGarbage(t *testing.T) {
	_, _, p := setup()
	if err := p.HandleImported(context.Background(), messagequeue.SubjectPoliciesImported, []byte(`{`)); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestRevisionFailureBypassesCache(t *testing.T) {
	next, c, revs, p := setupWithRevisions()
	revs.err = errors.New("db down")
	for range 2 {
		if _, err := p.LoanPolicyFor(context.Background(), criteria); err != nil {
			t.Fatal(err)
		}
	}
	if next.calls != 2 || len(c.data) != 0 {
		t.Errorf("calls = %d, cached = %d, want 2 and 0", next.calls, len(c.data))
	}
}
