package failure

import (
	"fmt"
	"strings"
)

// LimitScope names the loan-rule conditions an item limit was matched on.
type LimitScope int

const (
	ScopeNone LimitScope = iota
	ScopeMaterialType
	ScopeLoanType
	ScopeMaterialAndLoanType
	ScopePatronGroupAndMaterialType
	ScopePatronGroupAndLoanType
	ScopeAll
)

// ScopeFor derives the scope from the conditions present in the applied rule.
func ScopeFor(patronGroup, materialType, loanType bool) LimitScope {
	switch {
	case patronGroup && materialType && loanType:
		return ScopeAll
	case patronGroup && materialType:
		return ScopePatronGroupAndMaterialType
	case patronGroup && loanType:
		return ScopePatronGroupAndLoanType
	case materialType && loanType:
		return ScopeMaterialAndLoanType
	case materialType:
		return ScopeMaterialType
	case loanType:
		return ScopeLoanType
	}
	return ScopeNone
}

func (s LimitScope) String() string {
	switch s {
	case ScopeAll:
		return "for combination of patron group, material type and loan type"
	case ScopePatronGroupAndMaterialType:
		return "for combination of patron group and material type"
	case ScopePatronGroupAndLoanType:
		return "for combination of patron group and loan type"
	case ScopeMaterialAndLoanType:
		return "for combination of material type and loan type"
	case ScopeMaterialType:
		return "for material type"
	case ScopeLoanType:
		return "for loan type"
	}
	return ""
}

// ItemLimit is a reached item limit. It is built per evaluation and never shared.
type ItemLimit struct {
	Scope LimitScope
	Limit int
}

// Message renders the patron-facing text for the limit.
func (l ItemLimit) Message() string {
	return strings.TrimSpace(fmt.Sprintf("Patron has reached maximum limit of %d items %s", l.Limit, l.Scope))
}

// Validation builds the failure for the item with the given barcode.
func (l ItemLimit) Validation(itemBarcode string) Validation {
	return WithCode("ITEM_LIMIT_IS_REACHED", l.Message(), Param("itemBarcode", itemBarcode))
}
