package service

import (
	"context"
	"errors"

	"github.com/Strob0t/circulation/internal/config"
	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/resilience"
)

// Collaborator names. Each has its own circuit breaker.
const (
	collabItems           = "items"
	collabPatrons         = "patrons"
	collabLoans           = "loans"
	collabProxies         = "proxy-relationships"
	collabAutomatedBlocks = "automated-blocks"
	collabManualBlocks    = "manual-blocks"
	collabRequests        = "requests"
	collabPolicies        = "policies"
)

// NewLookupGuard builds the guard shared by all collaborator lookups.
// Missing records are an answer, not a fault, so they never trip a breaker.
func NewLookupGuard(b config.Breaker, l config.Lookup) *resilience.Guard {
	breakers := resilience.NewBreakers(b.MaxFailures, b.Timeout,
		resilience.WithNeutral(func(err error) bool { return errors.Is(err, domain.ErrNotFound) }))
	return resilience.NewGuard(resilience.NewPool(l.MaxConcurrent), breakers, l.Timeout)
}

type guardedLookups struct {
	next  lookup.Set
	guard *resilience.Guard
}

// GuardLookups routes every call in s through g.
func GuardLookups(s lookup.Set, g *resilience.Guard) lookup.Set {
	gl := &guardedLookups{next: s, guard: g}
	return lookup.Set{
		Items:              gl,
		Patrons:            gl,
		Loans:              gl,
		ProxyRelationships: gl,
		AutomatedBlocks:    gl,
		ManualBlocks:       gl,
		RequestQueues:      gl,
		Policies:           gl,
	}
}

func (g *guardedLookups) ItemByID(ctx context.Context, id string) (*item.Item, error) {
	return resilience.Call(ctx, g.guard, collabItems, func(ctx context.Context) (*item.Item, error) {
		return g.next.Items.ItemByID(ctx, id)
	})
}

func (g *guardedLookups) ItemByBarcode(ctx context.Context, barcode string) (*item.Item, error) {
	return resilience.Call(ctx, g.guard, collabItems, func(ctx context.Context) (*item.Item, error) {
		return g.next.Items.ItemByBarcode(ctx, barcode)
	})
}

func (g *guardedLookups) ItemsByInstance(ctx context.Context, instanceID string) ([]item.Item, error) {
	return resilience.Call(ctx, g.guard, collabItems, func(ctx context.Context) ([]item.Item, error) {
		return g.next.Items.ItemsByInstance(ctx, instanceID)
	})
}

func (g *guardedLookups) PatronByID(ctx context.Context, id string) (*patron.Patron, error) {
	return resilience.Call(ctx, g.guard, collabPatrons, func(ctx context.Context) (*patron.Patron, error) {
		return g.next.Patrons.PatronByID(ctx, id)
	})
}

func (g *guardedLookups) PatronByBarcode(ctx context.Context, barcode string) (*patron.Patron, error) {
	return resilience.Call(ctx, g.guard, collabPatrons, func(ctx context.Context) (*patron.Patron, error) {
		return g.next.Patrons.PatronByBarcode(ctx, barcode)
	})
}

func (g *guardedLookups) LoanByID(ctx context.Context, id string) (*loan.Loan, error) {
	return resilience.Call(ctx, g.guard, collabLoans, func(ctx context.Context) (*loan.Loan, error) {
		return g.next.Loans.LoanByID(ctx, id)
	})
}

func (g *guardedLookups) OpenLoanForItem(ctx context.Context, itemID string) (*loan.Loan, error) {
	return resilience.Call(ctx, g.guard, collabLoans, func(ctx context.Context) (*loan.Loan, error) {
		return g.next.Loans.OpenLoanForItem(ctx, itemID)
	})
}

func (g *guardedLookups) OpenLoansWithItems(ctx context.Context, userID string) ([]lookup.LoanedItem, error) {
	return resilience.Call(ctx, g.guard, collabLoans, func(ctx context.Context) ([]lookup.LoanedItem, error) {
		return g.next.Loans.OpenLoansWithItems(ctx, userID)
	})
}

func (g *guardedLookups) ActiveBetween(ctx context.Context, sponsorID, proxyID string) (*patron.ProxyRelationship, error) {
	return resilience.Call(ctx, g.guard, collabProxies, func(ctx context.Context) (*patron.ProxyRelationship, error) {
		return g.next.ProxyRelationships.ActiveBetween(ctx, sponsorID, proxyID)
	})
}

func (g *guardedLookups) AutomatedBlocks(ctx context.Context, patronID string) ([]patron.AutomatedBlock, error) {
	return resilience.Call(ctx, g.guard, collabAutomatedBlocks, func(ctx context.Context) ([]patron.AutomatedBlock, error) {
		return g.next.AutomatedBlocks.AutomatedBlocks(ctx, patronID)
	})
}

func (g *guardedLookups) ManualBlocks(ctx context.Context, patronID string) ([]patron.ManualBlock, error) {
	return resilience.Call(ctx, g.guard, collabManualBlocks, func(ctx context.Context) ([]patron.ManualBlock, error) {
		return g.next.ManualBlocks.ManualBlocks(ctx, patronID)
	})
}

func (g *guardedLookups) QueueForItem(ctx context.Context, itemID string) (*request.Queue, error) {
	return resilience.Call(ctx, g.guard, collabRequests, func(ctx context.Context) (*request.Queue, error) {
		return g.next.RequestQueues.QueueForItem(ctx, itemID)
	})
}

func (g *guardedLookups) QueueForInstance(ctx context.Context, instanceID string) (*request.Queue, error) {
	return resilience.Call(ctx, g.guard, collabRequests, func(ctx context.Context) (*request.Queue, error) {
		return g.next.RequestQueues.QueueForInstance(ctx, instanceID)
	})
}

func (g *guardedLookups) RequestByID(ctx context.Context, id string) (*request.Request, error) {
	return resilience.Call(ctx, g.guard, collabRequests, func(ctx context.Context) (*request.Request, error) {
		return g.next.RequestQueues.RequestByID(ctx, id)
	})
}

func (g *guardedLookups) LoanPolicyFor(ctx context.Context, c policy.Criteria) (*policy.LoanPolicy, error) {
	return resilience.Call(ctx, g.guard, collabPolicies, func(ctx context.Context) (*policy.LoanPolicy, error) {
		return g.next.Policies.LoanPolicyFor(ctx, c)
	})
}

func (g *guardedLookups) RequestPolicyFor(ctx context.Context, c policy.Criteria) (*policy.RequestPolicy, error) {
	return resilience.Call(ctx, g.guard, collabPolicies, func(ctx context.Context) (*policy.RequestPolicy, error) {
		return g.next.Policies.RequestPolicyFor(ctx, c)
	})
}
