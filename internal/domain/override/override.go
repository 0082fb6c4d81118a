// Package override defines the blocks staff may force past and the
// permissions that gate them.
package override

import (
	"sort"
	"time"
)

// Block names an overridable block category.
type Block string

const (
	BlockPatron          Block = "patronBlock"
	BlockItemLimit       Block = "itemLimitBlock"
	BlockItemNotLoanable Block = "itemNotLoanableBlock"
	BlockRenewal         Block = "renewalBlock"
)

// Permissions required to override each block.
const (
	PermissionPatronBlock          = "circulation.override-patron-block"
	PermissionItemLimitBlock       = "circulation.override-item-limit-block"
	PermissionItemNotLoanableBlock = "circulation.override-item-not-loanable-block"
	PermissionRenewalBlock         = "circulation.override-renewal-block"
)

// Permission returns the permission required to override b.
func (b Block) Permission() string {
	switch b {
	case BlockPatron:
		return PermissionPatronBlock
	case BlockItemLimit:
		return PermissionItemLimitBlock
	case BlockItemNotLoanable:
		return PermissionItemNotLoanableBlock
	case BlockRenewal:
		return PermissionRenewalBlock
	}
	return ""
}

// Request is the caller's declared intent to override blocks for one operation.
type Request struct {
	Blocks  map[Block]bool `json:"blocks,omitempty"`
	Comment string         `json:"comment,omitempty"`
	// DueDate is required when overriding a block that leaves no policy due date.
	DueDate *time.Time `json:"due_date,omitempty"`
}

// None is a Request without override intent.
var None = Request{}

// Requested reports whether b is to be overridden.
func (r Request) Requested(b Block) bool { return r.Blocks[b] }

// Any reports whether any block is to be overridden.
func (r Request) Any() bool {
	for _, v := range r.Blocks {
		if v {
			return true
		}
	}
	return false
}

// Capabilities is the set of permissions the caller presents.
type Capabilities map[string]struct{}

// NewCapabilities builds a Capabilities set.
func NewCapabilities(perms ...string) Capabilities {
	c := make(Capabilities, len(perms))
	for _, p := range perms {
		c[p] = struct{}{}
	}
	return c
}

// Has reports whether perm is held.
func (c Capabilities) Has(perm string) bool {
	_, ok := c[perm]
	return ok
}

// List returns the held permissions in sorted order.
func (c Capabilities) List() []string {
	out := make([]string, 0, len(c))
	for p := range c {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Applied is the audit record of an override that bypassed a rule.
type Applied struct {
	Block      Block     `json:"block"`
	Permission string    `json:"permission"`
	Operation  string    `json:"operation"`
	Comment    string    `json:"comment,omitempty"`
	OperatorID string    `json:"operator_id,omitempty"`
	At         time.Time `json:"at"`
}
