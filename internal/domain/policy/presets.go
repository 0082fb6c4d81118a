package policy

import "time"

const day = 24 * time.Hour

// PresetStandard returns the "standard" loan policy: three weeks, three renewals.
func PresetStandard() LoanPolicy {
	return LoanPolicy{
		ID:           "standard",
		Name:         "Standard loan",
		Loanable:     true,
		Renewable:    true,
		LoanPeriod:   21 * day,
		RenewalLimit: 3,
	}
}

// PresetShortTerm returns the "short-term" loan policy used for high-demand items.
func PresetShortTerm() LoanPolicy {
	return LoanPolicy{
		ID:         "short-term",
		Name:       "Short-term loan",
		Loanable:   true,
		Renewable:  false,
		LoanPeriod: 3 * day,
		ItemLimit:  2,
	}
}

// PresetNonLoanable returns the "non-loanable" policy for reference material.
func PresetNonLoanable() LoanPolicy {
	return LoanPolicy{
		ID:   "non-loanable",
		Name: "Not loanable",
	}
}

// PresetAllowAll returns the request policy allowing every request type.
func PresetAllowAll() RequestPolicy {
	return RequestPolicy{
		ID:           "allow-all",
		Name:         "Allow all",
		RequestTypes: []RequestType{RequestPage, RequestHold, RequestRecall},
	}
}

// PresetDocument returns the built-in policy set used when no policy
// directory is configured.
func PresetDocument() Document {
	return Document{
		LoanPolicies:    []LoanPolicy{PresetStandard(), PresetShortTerm(), PresetNonLoanable()},
		RequestPolicies: []RequestPolicy{PresetAllowAll()},
		Rules: RuleSet{
			Fallback: Rule{LoanPolicy: "standard", RequestPolicy: "allow-all"},
		},
	}
}

// LoanPolicyByID looks up a loan policy in d.
func (d *Document) LoanPolicyByID(id string) (LoanPolicy, bool) {
	for i := range d.LoanPolicies {
		if d.LoanPolicies[i].ID == id {
			return d.LoanPolicies[i], true
		}
	}
	return LoanPolicy{}, false
}

// RequestPolicyByID looks up a request policy in d.
func (d *Document) RequestPolicyByID(id string) (RequestPolicy, bool) {
	for i := range d.RequestPolicies {
		if d.RequestPolicies[i].ID == id {
			return d.RequestPolicies[i], true
		}
	}
	return RequestPolicy{}, false
}
