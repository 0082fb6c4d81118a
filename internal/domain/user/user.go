// Package user defines the staff operator performing a circulation action.
package user

import "github.com/Strob0t/circulation/internal/domain/override"

// Operator is the authenticated staff member behind a request.
type Operator struct {
	ID          string                `json:"id"`
	TenantID    string                `json:"tenant_id"`
	Permissions override.Capabilities `json:"-"`
}

// Anonymous is the operator used when no identity was supplied.
var Anonymous = Operator{ID: "anonymous", Permissions: override.NewCapabilities()}

// Can reports whether the operator holds perm.
func (o Operator) Can(perm string) bool {
	return o.Permissions.Has(perm)
}
