package policy

import (
	"fmt"

	"github.com/Strob0t/circulation/internal/domain"
)

// ResolveLoanPolicy returns the loan policy the rules select for c, carrying
// the matched rule's conditions.
func (d *Document) ResolveLoanPolicy(c Criteria) (LoanPolicy, error) {
	m := d.Rules.Evaluate(c)
	lp, ok := d.LoanPolicyByID(m.Rule.LoanPolicy)
	if !ok {
		return LoanPolicy{}, fmt.Errorf("loan policy %q (%s): %w", m.Rule.LoanPolicy, m.Reason, domain.ErrNotFound)
	}
	lp.Conditions = m.Conditions
	return lp, nil
}

// ResolveRequestPolicy returns the request policy the rules select for c.
func (d *Document) ResolveRequestPolicy(c Criteria) (RequestPolicy, error) {
	m := d.Rules.Evaluate(c)
	rp, ok := d.RequestPolicyByID(m.Rule.RequestPolicy)
	if !ok {
		return RequestPolicy{}, fmt.Errorf("request policy %q (%s): %w", m.Rule.RequestPolicy, m.Reason, domain.ErrNotFound)
	}
	return rp, nil
}
