// Package patron defines borrowers, proxy relationships and patron blocks.
package patron

import (
	"strings"
	"time"
)

// Patron is a library user who borrows or requests items.
type Patron struct {
	ID            string     `json:"id"`
	Barcode       string     `json:"barcode"`
	PatronGroupID string     `json:"patron_group_id"`
	Active        bool       `json:"active"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
}

// IsActive reports whether the patron may transact at now. Expired patrons
// are inactive regardless of the active flag.
func (p *Patron) IsActive(now time.Time) bool {
	if !p.Active {
		return false
	}
	return p.ExpiresAt == nil || p.ExpiresAt.After(now)
}

// ProxyRelationship lets a proxy act on behalf of a sponsor.
type ProxyRelationship struct {
	ID        string     `json:"id"`
	SponsorID string     `json:"sponsor_id"`
	ProxyID   string     `json:"proxy_id"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// IsActive reports whether the relationship is in force at now.
func (r *ProxyRelationship) IsActive(now time.Time) bool {
	if !r.Active {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// Action is a circulation action a block may restrict.
type Action string

const (
	ActionBorrowing  Action = "borrowing"
	ActionRenewing   Action = "renewing"
	ActionRequesting Action = "requesting"
)

// ManualBlock is a block placed on a patron by staff.
type ManualBlock struct {
	ID             string     `json:"id"`
	PatronID       string     `json:"patron_id"`
	Description    string     `json:"desc"`
	Borrowing      bool       `json:"borrowing"`
	Renewals       bool       `json:"renewals"`
	Requests       bool       `json:"requests"`
	ExpirationDate *time.Time `json:"expiration_date,omitempty"`
}

// Blocks reports whether the block restricts action at now.
func (b *ManualBlock) Blocks(action Action, now time.Time) bool {
	var flag bool
	switch action {
	case ActionBorrowing:
		flag = b.Borrowing
	case ActionRenewing:
		flag = b.Renewals
	case ActionRequesting:
		flag = b.Requests
	}
	return flag && (b.ExpirationDate == nil || b.ExpirationDate.After(now))
}

// ActiveManualBlocks filters blocks restricting action at now.
func ActiveManualBlocks(blocks []ManualBlock, action Action, now time.Time) []ManualBlock {
	var out []ManualBlock
	for i := range blocks {
		if blocks[i].Blocks(action, now) {
			out = append(out, blocks[i])
		}
	}
	return out
}

// Reasons joins block descriptions for display.
func Reasons(blocks []ManualBlock) string {
	descs := make([]string, 0, len(blocks))
	for i := range blocks {
		descs = append(descs, blocks[i].Description)
	}
	return strings.Join(descs, ";")
}

// AutomatedBlock is a block computed from patron block conditions such as
// overdue items or outstanding fines.
type AutomatedBlock struct {
	Message        string `json:"message"`
	BlockBorrowing bool   `json:"block_borrowing"`
	BlockRenewals  bool   `json:"block_renewals"`
	BlockRequests  bool   `json:"block_requests"`
}

// Blocks reports whether the block restricts action.
func (b *AutomatedBlock) Blocks(action Action) bool {
	switch action {
	case ActionBorrowing:
		return b.BlockBorrowing
	case ActionRenewing:
		return b.BlockRenewals
	case ActionRequesting:
		return b.BlockRequests
	}
	return false
}

// BlockMessages returns the messages of automated blocks restricting action.
func BlockMessages(blocks []AutomatedBlock, action Action) []string {
	var out []string
	for i := range blocks {
		if blocks[i].Blocks(action) {
			out = append(out, blocks[i].Message)
		}
	}
	return out
}
