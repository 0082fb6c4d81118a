package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/Strob0t/circulation/internal/domain/policy"
)

// fallbackPosition marks the circulation rule applied when no other matches.
const fallbackPosition = -1

func (s *Store) LoanPolicyFor(ctx context.Context, c policy.Criteria) (*policy.LoanPolicy, error) {
	d, err := s.PolicyDocument(ctx)
	if err != nil {
		return nil, err
	}
	lp, err := d.ResolveLoanPolicy(c)
	if err != nil {
		return nil, err
	}
	return &lp, nil
}

func (s *Store) RequestPolicyFor(ctx context.Context, c policy.Criteria) (*policy.RequestPolicy, error) {
	d, err := s.PolicyDocument(ctx)
	if err != nil {
		return nil, err
	}
	rp, err := d.ResolveRequestPolicy(c)
	if err != nil {
		return nil, err
	}
	return &rp, nil
}

// PolicyDocument reads the tenant's policies and circulation rules.
func (s *Store) PolicyDocument(ctx context.Context) (*policy.Document, error) {
	tid := tenantFromCtx(ctx)
	var d policy.Document

	rows, err := s.pool.Query(ctx, `SELECT body FROM loan_policies WHERE tenant_id = $1 ORDER BY id`, tid)
	if err != nil {
		return nil, fmt.Errorf("list loan policies: %w", err)
	}
	if d.LoanPolicies, err = collect(rows, scanJSON[policy.LoanPolicy]); err != nil {
		return nil, fmt.Errorf("scan loan policies: %w", err)
	}

	rows, err = s.pool.Query(ctx, `SELECT body FROM request_policies WHERE tenant_id = $1 ORDER BY id`, tid)
	if err != nil {
		return nil, fmt.Errorf("list request policies: %w", err)
	}
	if d.RequestPolicies, err = collect(rows, scanJSON[policy.RequestPolicy]); err != nil {
		return nil, fmt.Errorf("scan request policies: %w", err)
	}

	rows, err = s.pool.Query(ctx,
		`SELECT position, patron_group, material_type, loan_type, loan_policy_id, request_policy_id
		 FROM circulation_rules WHERE tenant_id = $1 ORDER BY position`, tid)
	if err != nil {
		return nil, fmt.Errorf("list circulation rules: %w", err)
	}
	type positioned struct {
		pos  int
		rule policy.Rule
	}
	rules, err := collect(rows, func(row scannable) (positioned, error) {
		var p positioned
		r := &p.rule
		err := row.Scan(&p.pos, &r.PatronGroup, &r.MaterialType, &r.LoanType, &r.LoanPolicy, &r.RequestPolicy)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan circulation rules: %w", err)
	}
	for _, p := range rules {
		if p.pos == fallbackPosition {
			d.Rules.Fallback = p.rule
			continue
		}
		d.Rules.Rules = append(d.Rules.Rules, p.rule)
	}
	return &d, nil
}

// PolicyRevision returns the tenant's policy revision, zero before the
// first import.
func (s *Store) PolicyRevision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.pool.QueryRow(ctx, `SELECT revision FROM policy_revisions WHERE tenant_id = $1`, tenantFromCtx(ctx)).Scan(&rev)
	if isNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("policy revision: %w", err)
	}
	return rev, nil
}

// ImportPolicies replaces the tenant's policies and rules with d and returns
// the new policy revision.
func (s *Store) ImportPolicies(ctx context.Context, d *policy.Document) (int64, error) {
	if err := d.Validate(); err != nil {
		return 0, fmt.Errorf("import policies: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback after commit is a no-op

	tid := tenantFromCtx(ctx)
	batch := &pgx.Batch{}
	batch.Queue(`DELETE FROM circulation_rules WHERE tenant_id = $1`, tid)
	batch.Queue(`DELETE FROM loan_policies WHERE tenant_id = $1`, tid)
	batch.Queue(`DELETE FROM request_policies WHERE tenant_id = $1`, tid)

	for i := range d.LoanPolicies {
		body, err := json.Marshal(d.LoanPolicies[i])
		if err != nil {
			return 0, fmt.Errorf("marshal loan policy %s: %w", d.LoanPolicies[i].ID, err)
		}
		batch.Queue(`INSERT INTO loan_policies (tenant_id, id, body) VALUES ($1, $2, $3)`, tid, d.LoanPolicies[i].ID, body)
	}
	for i := range d.RequestPolicies {
		body, err := json.Marshal(d.RequestPolicies[i])
		if err != nil {
			return 0, fmt.Errorf("marshal request policy %s: %w", d.RequestPolicies[i].ID, err)
		}
		batch.Queue(`INSERT INTO request_policies (tenant_id, id, body) VALUES ($1, $2, $3)`, tid, d.RequestPolicies[i].ID, body)
	}

	insertRule := func(pos int, r policy.Rule) {
		batch.Queue(
			`INSERT INTO circulation_rules (tenant_id, position, patron_group, material_type, loan_type, loan_policy_id, request_policy_id)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			tid, pos, orWildcard(r.PatronGroup), orWildcard(r.MaterialType), orWildcard(r.LoanType), r.LoanPolicy, r.RequestPolicy)
	}
	for i, r := range d.Rules.Rules {
		insertRule(i, r)
	}
	if d.Rules.Fallback != (policy.Rule{}) {
		insertRule(fallbackPosition, d.Rules.Fallback)
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("import policies: %w", err)
	}

	var rev int64
	err = tx.QueryRow(ctx, `
		INSERT INTO policy_revisions (tenant_id, revision) VALUES ($1, 1)
		ON CONFLICT (tenant_id) DO UPDATE SET revision = policy_revisions.revision + 1
		RETURNING revision`, tid).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("bump policy revision: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit policies: %w", err)
	}
	return rev, nil
}

func scanJSON[T any](row scannable) (T, error) {
	var (
		v   T
		raw []byte
	)
	if err := row.Scan(&raw); err != nil {
		return v, err
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}

func orWildcard(s string) string {
	if s == "" {
		return policy.Wildcard
	}
	return s
}
