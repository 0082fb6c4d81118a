// Package policy defines loan and request policies and the circulation rules
// that select them for a patron and item.
package policy

import "time"

// RequestType names a kind of request a policy may allow.
type RequestType string

const (
	RequestPage   RequestType = "Page"
	RequestHold   RequestType = "Hold"
	RequestRecall RequestType = "Recall"
)

// Conditions records which criteria the matching circulation rule constrained.
type Conditions struct {
	PatronGroup  bool `json:"patron_group"`
	MaterialType bool `json:"material_type"`
	LoanType     bool `json:"loan_type"`
}

// LoanPolicy governs whether and for how long an item may be borrowed.
type LoanPolicy struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	Loanable    bool          `json:"loanable" yaml:"loanable"`
	Renewable   bool          `json:"renewable" yaml:"renewable"`
	LoanPeriod  time.Duration `json:"loan_period" yaml:"loan_period"`
	RenewPeriod time.Duration `json:"renew_period,omitempty" yaml:"renew_period,omitempty"`
	// RenewalLimit is the number of renewals allowed; zero with
	// UnlimitedRenewals false means no renewals.
	RenewalLimit      int  `json:"renewal_limit" yaml:"renewal_limit"`
	UnlimitedRenewals bool `json:"unlimited_renewals" yaml:"unlimited_renewals"`
	// RenewItemsWithHold allows renewal while a hold is at the top of the queue.
	RenewItemsWithHold bool `json:"renew_items_with_hold" yaml:"renew_items_with_hold"`
	// ItemLimit caps open loans matching the rule conditions; zero disables it.
	ItemLimit int `json:"item_limit,omitempty" yaml:"item_limit,omitempty"`

	// Conditions is filled in when the policy is resolved through a rule.
	Conditions Conditions `json:"conditions" yaml:"-"`
}

// DueDate returns the due date for a loan starting at from.
func (p *LoanPolicy) DueDate(from time.Time) time.Time {
	return from.Add(p.LoanPeriod)
}

// RenewalDueDate returns the due date for a renewal requested at from.
func (p *LoanPolicy) RenewalDueDate(from time.Time) time.Time {
	if p.RenewPeriod > 0 {
		return from.Add(p.RenewPeriod)
	}
	return from.Add(p.LoanPeriod)
}

// HasItemLimit reports whether the policy restricts the number of open loans.
func (p *LoanPolicy) HasItemLimit() bool {
	return p.ItemLimit > 0
}

// RenewalLimitReached reports whether renewalCount exhausts the policy.
func (p *LoanPolicy) RenewalLimitReached(renewalCount int) bool {
	if p.UnlimitedRenewals {
		return false
	}
	return renewalCount >= p.RenewalLimit
}

// RequestPolicy lists the request types allowed for the matched patron and item.
type RequestPolicy struct {
	ID           string        `json:"id" yaml:"id"`
	Name         string        `json:"name" yaml:"name"`
	RequestTypes []RequestType `json:"request_types" yaml:"request_types"`
}

// Allows reports whether t is permitted by the policy.
func (p *RequestPolicy) Allows(t RequestType) bool {
	for _, allowed := range p.RequestTypes {
		if allowed == t {
			return true
		}
	}
	return false
}
