package policy

import (
	"errors"
	"testing"

	"github.com/Strob0t/circulation/internal/domain"
)

func TestResolveLoanPolicy(t *testing.T) {
	d := PresetDocument()
	d.Rules.Rules = []Rule{
		{MaterialType: "dvd", LoanPolicy: "short-term", RequestPolicy: "allow-all"},
		{PatronGroup: "visitor", MaterialType: "ref-*", LoanPolicy: "non-loanable", RequestPolicy: "allow-all"},
	}

	tests := []struct {
		name     string
		criteria Criteria
		wantID   string
		wantCond Conditions
	}{
		{"material type rule", Criteria{PatronGroupID: "staff", MaterialTypeID: "dvd"}, "short-term", Conditions{MaterialType: true}},
		{"glob rule", Criteria{PatronGroupID: "visitor", MaterialTypeID: "ref-atlas"}, "non-loanable", Conditions{PatronGroup: true, MaterialType: true}},
		{"fallback", Criteria{PatronGroupID: "staff", MaterialTypeID: "book"}, "standard", Conditions{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lp, err := d.ResolveLoanPolicy(tt.criteria)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if lp.ID != tt.wantID || lp.Conditions != tt.wantCond {
				t.Errorf("got %s %+v, want %s %+v", lp.ID, lp.Conditions, tt.wantID, tt.wantCond)
			}
		})
	}
}

func TestResolveMissingPolicy(t *testing.T) {
	d := PresetDocument()
	d.Rules.Fallback.LoanPolicy = "gone"
	d.Rules.Fallback.RequestPolicy = "gone"

	if _, err := d.ResolveLoanPolicy(Criteria{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("loan policy: expected not found, got %v", err)
	}
	if _, err := d.ResolveRequestPolicy(Criteria{}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("request policy: expected not found, got %v", err)
	}
}
