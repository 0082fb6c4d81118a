// Package lookup defines the read-side collaborators circulation rules consult.
// Implementations return domain.ErrNotFound (wrapped or bare) for absent records.
package lookup

import (
	"context"

	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
)

// Items finds item records.
type Items interface {
	ItemByID(ctx context.Context, id string) (*item.Item, error)
	ItemByBarcode(ctx context.Context, barcode string) (*item.Item, error)
	ItemsByInstance(ctx context.Context, instanceID string) ([]item.Item, error)
}

// Patrons finds patron records.
type Patrons interface {
	PatronByID(ctx context.Context, id string) (*patron.Patron, error)
	PatronByBarcode(ctx context.Context, barcode string) (*patron.Patron, error)
}

// LoanedItem pairs an open loan with the item it lends.
type LoanedItem struct {
	Loan loan.Loan
	Item item.Item
}

// Loans finds loan records.
type Loans interface {
	LoanByID(ctx context.Context, id string) (*loan.Loan, error)
	// OpenLoanForItem returns domain.ErrNotFound when the item is not on loan.
	OpenLoanForItem(ctx context.Context, itemID string) (*loan.Loan, error)
	OpenLoansWithItems(ctx context.Context, userID string) ([]LoanedItem, error)
}

// ProxyRelationships finds proxy relationships.
type ProxyRelationships interface {
	// ActiveBetween returns domain.ErrNotFound when no relationship exists.
	ActiveBetween(ctx context.Context, sponsorID, proxyID string) (*patron.ProxyRelationship, error)
}

// AutomatedBlocks evaluates patron block conditions.
type AutomatedBlocks interface {
	AutomatedBlocks(ctx context.Context, patronID string) ([]patron.AutomatedBlock, error)
}

// ManualBlocks lists staff-placed blocks.
type ManualBlocks interface {
	ManualBlocks(ctx context.Context, patronID string) ([]patron.ManualBlock, error)
}

// RequestQueues loads request queues. An item or instance without open
// requests yields an empty queue, not an error.
type RequestQueues interface {
	QueueForItem(ctx context.Context, itemID string) (*request.Queue, error)
	QueueForInstance(ctx context.Context, instanceID string) (*request.Queue, error)
	RequestByID(ctx context.Context, id string) (*request.Request, error)
}

// Policies resolves the policies that apply to a patron and item.
type Policies interface {
	LoanPolicyFor(ctx context.Context, c policy.Criteria) (*policy.LoanPolicy, error)
	RequestPolicyFor(ctx context.Context, c policy.Criteria) (*policy.RequestPolicy, error)
}

// Set bundles every lookup a circulation operation may need.
type Set struct {
	Items              Items
	Patrons            Patrons
	Loans              Loans
	ProxyRelationships ProxyRelationships
	AutomatedBlocks    AutomatedBlocks
	ManualBlocks       ManualBlocks
	RequestQueues      RequestQueues
	Policies           Policies
}
