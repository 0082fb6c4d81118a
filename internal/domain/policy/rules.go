package policy

import (
	"fmt"
	"path/filepath"
)

// Wildcard matches any criterion value.
const Wildcard = "*"

// Rule maps patron and item criteria to the policies that apply.
type Rule struct {
	PatronGroup   string `json:"patron_group" yaml:"patron_group"`
	MaterialType  string `json:"material_type" yaml:"material_type"`
	LoanType      string `json:"loan_type" yaml:"loan_type"`
	LoanPolicy    string `json:"loan_policy" yaml:"loan_policy"`
	RequestPolicy string `json:"request_policy" yaml:"request_policy"`
}

// Criteria are the attributes a rule is matched against.
type Criteria struct {
	PatronGroupID  string
	MaterialTypeID string
	LoanTypeID     string
}

// Match is the outcome of evaluating a RuleSet.
type Match struct {
	RuleIndex  int        `json:"rule_index"` // -1 if the fallback applied
	Rule       Rule       `json:"rule"`
	Conditions Conditions `json:"conditions"`
	Reason     string     `json:"reason"`
}

// RuleSet is an ordered list of circulation rules with a fallback.
type RuleSet struct {
	Rules    []Rule `json:"rules" yaml:"rules"`
	Fallback Rule   `json:"fallback" yaml:"fallback"`
}

// Evaluate returns the first rule matching c. If none matches, the fallback applies.
func (s *RuleSet) Evaluate(c Criteria) Match {
	for i := range s.Rules {
		r := &s.Rules[i]
		if !matchCriterion(r.PatronGroup, c.PatronGroupID) ||
			!matchCriterion(r.MaterialType, c.MaterialTypeID) ||
			!matchCriterion(r.LoanType, c.LoanTypeID) {
			continue
		}
		return Match{
			RuleIndex:  i,
			Rule:       *r,
			Conditions: r.conditions(),
			Reason:     fmt.Sprintf("matched rule[%d]", i),
		}
	}
	return Match{
		RuleIndex: -1,
		Rule:      s.Fallback,
		Reason:    "no matching rule; fallback applied",
	}
}

func (r *Rule) conditions() Conditions {
	return Conditions{
		PatronGroup:  constrained(r.PatronGroup),
		MaterialType: constrained(r.MaterialType),
		LoanType:     constrained(r.LoanType),
	}
}

func constrained(pattern string) bool {
	return pattern != "" && pattern != Wildcard
}

// matchCriterion supports exact values, "*" and glob patterns via filepath.Match.
func matchCriterion(pattern, value string) bool {
	if pattern == "" || pattern == Wildcard || pattern == value {
		return true
	}
	matched, err := filepath.Match(pattern, value)
	return err == nil && matched
}
