package policy

import "fmt"

// Validate checks that a LoanPolicy is well-formed.
func (p *LoanPolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("loan policy: id is required")
	}
	if p.Loanable && p.LoanPeriod <= 0 {
		return fmt.Errorf("loan policy %s: loan_period must be > 0 for loanable policies", p.ID)
	}
	if p.RenewalLimit < 0 {
		return fmt.Errorf("loan policy %s: renewal_limit must be >= 0", p.ID)
	}
	if p.ItemLimit < 0 {
		return fmt.Errorf("loan policy %s: item_limit must be >= 0", p.ID)
	}
	return nil
}

// Validate checks that a RequestPolicy is well-formed.
func (p *RequestPolicy) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("request policy: id is required")
	}
	for _, t := range p.RequestTypes {
		if !isValidRequestType(t) {
			return fmt.Errorf("request policy %s: invalid request type %q", p.ID, t)
		}
	}
	return nil
}

// Validate checks that every rule references a known policy.
func (d *Document) Validate() error {
	loans := make(map[string]bool, len(d.LoanPolicies))
	for i := range d.LoanPolicies {
		if err := d.LoanPolicies[i].Validate(); err != nil {
			return err
		}
		loans[d.LoanPolicies[i].ID] = true
	}
	requests := make(map[string]bool, len(d.RequestPolicies))
	for i := range d.RequestPolicies {
		if err := d.RequestPolicies[i].Validate(); err != nil {
			return err
		}
		requests[d.RequestPolicies[i].ID] = true
	}
	check := func(where string, r Rule) error {
		if r.LoanPolicy != "" && !loans[r.LoanPolicy] {
			return fmt.Errorf("%s: unknown loan policy %q", where, r.LoanPolicy)
		}
		if r.RequestPolicy != "" && !requests[r.RequestPolicy] {
			return fmt.Errorf("%s: unknown request policy %q", where, r.RequestPolicy)
		}
		return nil
	}
	for i, r := range d.Rules.Rules {
		if err := check(fmt.Sprintf("rule[%d]", i), r); err != nil {
			return err
		}
	}
	return check("fallback", d.Rules.Fallback)
}

func isValidRequestType(t RequestType) bool {
	switch t {
	case RequestPage, RequestHold, RequestRecall:
		return true
	}
	return false
}
