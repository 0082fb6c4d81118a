package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/domain/result"
	"github.com/Strob0t/circulation/internal/port/lookup"
)

// CheckOutRecords is everything a check-out is validated against.
type CheckOutRecords struct {
	Request         loan.CheckOutRequest
	Now             time.Time
	User            *patron.Patron
	Proxy           *patron.Patron
	Relationship    *patron.ProxyRelationship
	AutomatedBlocks []patron.AutomatedBlock
	ManualBlocks    []patron.ManualBlock
	Item            *item.Item
	OpenLoan        *loan.Loan
	Queue           *request.Queue
	LoanPolicy      *policy.LoanPolicy
	OpenLoans       []lookup.LoanedItem
}

func (r CheckOutRecords) criteria() policy.Criteria {
	c := policy.Criteria{}
	if r.User != nil {
		c.PatronGroupID = r.User.PatronGroupID
	}
	if r.Item != nil {
		c.MaterialTypeID = r.Item.MaterialTypeID
		c.LoanTypeID = r.Item.LoanTypeID()
	}
	return c
}

func (r CheckOutRecords) itemBarcode() string { return r.Request.ItemBarcode }
func (r CheckOutRecords) userBarcode() string { return r.Request.UserBarcode }
func (r CheckOutRecords) proxyBarcode() string {
	return r.Request.ProxyUserBarcode
}

var itemDependent = []Category{FailedToFetchItem}

// CheckOut builds the check-out pipeline for one operation.
func CheckOut(l lookup.Set, g Gate, acc *Accumulator) *Pipeline[CheckOutRecords] {
	p := NewPipeline[CheckOutRecords](acc)

	p.Refuse(RefuseWhen(ServicePointIsNotPresent,
		func(r CheckOutRecords) bool { return r.Request.ServicePointID == "" },
		Message("Check out must be performed at a service point", "servicePointId",
			func(r CheckOutRecords) string { return r.Request.ServicePointID })))

	p.Then(FetchBoth(acc,
		Fetching[CheckOutRecords, *patron.Patron]{
			Category: FailedToFetchUser,
			Lookup: func(r CheckOutRecords) result.Task[*patron.Patron] {
				bc := r.userBarcode()
				return orNotFound(find(func(ctx context.Context) (*patron.Patron, error) {
					return l.Patrons.PatronByBarcode(ctx, bc)
				}, "user", bc), func() failure.Cause {
					return failure.Single("Could not find user with matching barcode", "userBarcode", bc)
				})
			},
			Set: func(r CheckOutRecords, u *patron.Patron) CheckOutRecords { r.User = u; return r },
		},
		Fetching[CheckOutRecords, *item.Item]{
			Category: FailedToFetchItem,
			Lookup: func(r CheckOutRecords) result.Task[*item.Item] {
				bc := r.itemBarcode()
				return orNotFound(find(func(ctx context.Context) (*item.Item, error) {
					return l.Items.ItemByBarcode(ctx, bc)
				}, "item", bc), func() failure.Cause {
					return failure.Single(fmt.Sprintf("No item with barcode %s could be found", bc), "itemBarcode", bc)
				})
			},
			Set: func(r CheckOutRecords, it *item.Item) CheckOutRecords { r.Item = it; return r },
		}))

	p.Refuse(RefuseWhen(UserIsInactive,
		func(r CheckOutRecords) bool { return !r.User.IsActive(r.Now) },
		Message("Cannot check out to inactive user", "userBarcode", CheckOutRecords.userBarcode)),
		FailedToFetchUser)

	p.Then(Fetch(acc, Fetching[CheckOutRecords, *patron.Patron]{
		Category: FailedToFetchProxyUser,
		Lookup: func(r CheckOutRecords) result.Task[*patron.Patron] {
			bc := r.proxyBarcode()
			if bc == "" {
				return nil
			}
			return orNotFound(find(func(ctx context.Context) (*patron.Patron, error) {
				return l.Patrons.PatronByBarcode(ctx, bc)
			}, "user", bc), func() failure.Cause {
				return failure.Single("Could not find proxy user with matching barcode", "proxyUserBarcode", bc)
			})
		},
		Set: func(r CheckOutRecords, u *patron.Patron) CheckOutRecords { r.Proxy = u; return r },
	}))

	p.Refuse(RefuseWhen(ProxyUserIsInactive,
		func(r CheckOutRecords) bool { return r.Proxy != nil && !r.Proxy.IsActive(r.Now) },
		Message("Cannot check out via inactive proxying user", "proxyUserBarcode", CheckOutRecords.proxyBarcode)),
		FailedToFetchProxyUser)

	p.Refuse(RefuseWhen(ProxyUserEqualsToUser,
		func(r CheckOutRecords) bool { return r.Proxy != nil && r.User != nil && r.Proxy.ID == r.User.ID },
		Message("User cannot be proxy for themself", "proxyUserId",
			func(r CheckOutRecords) string { return r.Proxy.ID })),
		FailedToFetchUser, FailedToFetchProxyUser)

	invalidProxy := func(r CheckOutRecords) failure.Cause {
		return failure.Single("Cannot check out item via proxy when relationship is invalid",
			"proxyUserBarcode", r.proxyBarcode())
	}
	p.Then(Fetch(acc, Fetching[CheckOutRecords, *patron.ProxyRelationship]{
		Category: InvalidProxyRelationship,
		SkipIf:   []Category{FailedToFetchUser, FailedToFetchProxyUser, ProxyUserEqualsToUser},
		Lookup: func(r CheckOutRecords) result.Task[*patron.ProxyRelationship] {
			if r.Proxy == nil || r.User == nil {
				return nil
			}
			sponsor, proxy := r.User.ID, r.Proxy.ID
			return orNotFound(find(func(ctx context.Context) (*patron.ProxyRelationship, error) {
				return l.ProxyRelationships.ActiveBetween(ctx, sponsor, proxy)
			}, "proxy relationship", proxy), func() failure.Cause { return invalidProxy(r) })
		},
		Set: func(r CheckOutRecords, rel *patron.ProxyRelationship) CheckOutRecords { r.Relationship = rel; return r },
	}))
	p.Refuse(RefuseWhen(InvalidProxyRelationship,
		func(r CheckOutRecords) bool { return r.Relationship != nil && !r.Relationship.IsActive(r.Now) },
		invalidProxy),
		InvalidProxyRelationship)

	p.Then(fetchBlocks(l, acc, func(r CheckOutRecords) *patron.Patron { return r.User },
		func(r CheckOutRecords, b []patron.AutomatedBlock) CheckOutRecords { r.AutomatedBlocks = b; return r },
		func(r CheckOutRecords, b []patron.ManualBlock) CheckOutRecords { r.ManualBlocks = b; return r },
		FailedToFetchUser))
	p.Block(AutomatedBlockRule(patron.ActionBorrowing,
		func(r CheckOutRecords) []patron.AutomatedBlock { return r.AutomatedBlocks }),
		override.BlockPatron, g, FailedToFetchUser)
	p.Block(ManualBlockRule(patron.ActionBorrowing,
		func(r CheckOutRecords) ([]patron.ManualBlock, time.Time) { return r.ManualBlocks, r.Now }),
		override.BlockPatron, g, FailedToFetchUser)

	p.Refuse(RefuseWhen(ItemAlreadyCheckedOut,
		func(r CheckOutRecords) bool { return r.Item.IsCheckedOut() },
		Message("Item is already checked out", "itemBarcode", CheckOutRecords.itemBarcode)),
		itemDependent...)

	p.Refuse(RefuseWhen(ItemIsNotAllowedForCheckOut,
		func(r CheckOutRecords) bool { return !r.Item.AllowedForCheckOut() },
		func(r CheckOutRecords) failure.Cause {
			return failure.Single(fmt.Sprintf("%s (%s) (Barcode:%s) has the item status %s and cannot be checked out",
				r.Item.Title, r.Item.MaterialTypeID, r.Item.Barcode, r.Item.Status),
				"itemBarcode", r.Item.Barcode)
		}),
		itemDependent...)

	p.Then(Fetch(acc, Fetching[CheckOutRecords, *loan.Loan]{
		Category: ItemHasOpenLoans,
		SkipIf:   []Category{FailedToFetchItem, ItemAlreadyCheckedOut},
		Lookup: func(r CheckOutRecords) result.Task[*loan.Loan] {
			id := r.Item.ID
			return optional(find(func(ctx context.Context) (*loan.Loan, error) {
				return l.Loans.OpenLoanForItem(ctx, id)
			}, "loan", id))
		},
		Set: func(r CheckOutRecords, ln *loan.Loan) CheckOutRecords { r.OpenLoan = ln; return r },
	}))
	p.Refuse(RefuseWhen(ItemHasOpenLoans,
		func(r CheckOutRecords) bool { return r.OpenLoan != nil },
		Message("Cannot check out item that already has an open loan", "itemBarcode", CheckOutRecords.itemBarcode)),
		FailedToFetchItem, ItemAlreadyCheckedOut, ItemHasOpenLoans)

	p.Then(Fetch(acc, Fetching[CheckOutRecords, *request.Queue]{
		Category: FailedToFetchRequestQueue,
		SkipIf:   itemDependent,
		Lookup: func(r CheckOutRecords) result.Task[*request.Queue] {
			id := r.Item.ID
			return find(func(ctx context.Context) (*request.Queue, error) {
				return l.RequestQueues.QueueForItem(ctx, id)
			}, "request queue", id)
		},
		Set: func(r CheckOutRecords, q *request.Queue) CheckOutRecords { r.Queue = q; return r },
	}))
	p.Refuse(RefuseWhen(ItemRequestedByAnotherPatron,
		func(r CheckOutRecords) bool {
			if r.Queue == nil || r.User == nil {
				return false
			}
			head, ok := r.Queue.Head()
			return ok && head.IsAwaitingPickup() && head.RequesterID != r.User.ID
		},
		Message("User checking out must be requester awaiting pickup", "userBarcode", CheckOutRecords.userBarcode)),
		FailedToFetchItem, FailedToFetchUser, FailedToFetchRequestQueue)

	p.Then(Fetch(acc, Fetching[CheckOutRecords, *policy.LoanPolicy]{
		Category: FailedToFetchLoanPolicy,
		SkipIf:   []Category{FailedToFetchItem, FailedToFetchUser},
		Lookup: func(r CheckOutRecords) result.Task[*policy.LoanPolicy] {
			c := r.criteria()
			return find(func(ctx context.Context) (*policy.LoanPolicy, error) {
				return l.Policies.LoanPolicyFor(ctx, c)
			}, "loan policy", c.LoanTypeID)
		},
		Set: func(r CheckOutRecords, lp *policy.LoanPolicy) CheckOutRecords { r.LoanPolicy = lp; return r },
	}))

	policyDependent := []Category{FailedToFetchItem, FailedToFetchUser, FailedToFetchLoanPolicy}
	p.Block(RefuseWhen(ItemIsNotLoanable,
		func(r CheckOutRecords) bool { return !r.LoanPolicy.Loanable },
		func(r CheckOutRecords) failure.Cause {
			return loanPolicyError(r.LoanPolicy, "Item is not loanable", failure.Param("itemBarcode", r.itemBarcode()))
		}),
		override.BlockItemNotLoanable, g, policyDependent...)
	if g.Request.Requested(override.BlockItemNotLoanable) {
		p.Refuse(RefuseWhen(OverrideDueDateIsMissing,
			func(CheckOutRecords) bool { return g.Request.DueDate == nil },
			func(CheckOutRecords) failure.Cause {
				return failure.Single("Override should be performed with due date specified",
					"overrideBlocks", string(override.BlockItemNotLoanable))
			}))
	}

	p.Then(Fetch(acc, Fetching[CheckOutRecords, []lookup.LoanedItem]{
		Category: FailedToFetchLoan,
		SkipIf:   policyDependent,
		Lookup: func(r CheckOutRecords) result.Task[[]lookup.LoanedItem] {
			if !itemLimitApplies(r.LoanPolicy) || g.Request.Requested(override.BlockItemLimit) {
				return nil
			}
			userID := r.User.ID
			return result.Lookup(func(ctx context.Context) ([]lookup.LoanedItem, error) {
				return l.Loans.OpenLoansWithItems(ctx, userID)
			}, "loan", userID)
		},
		Set: func(r CheckOutRecords, open []lookup.LoanedItem) CheckOutRecords { r.OpenLoans = open; return r },
	}))
	p.Block(RefuseWhen(ItemLimitIsReached,
		func(r CheckOutRecords) bool {
			_, reached := ReachedItemLimit(r.LoanPolicy, r.Item, r.OpenLoans)
			return reached
		},
		func(r CheckOutRecords) failure.Cause {
			limit, _ := ReachedItemLimit(r.LoanPolicy, r.Item, r.OpenLoans)
			return limit.Validation(r.itemBarcode())
		}),
		override.BlockItemLimit, g, append(policyDependent, FailedToFetchLoan)...)

	return p
}

func loanPolicyError(lp *policy.LoanPolicy, message string, extra ...failure.Parameter) failure.Validation {
	params := append(extra,
		failure.Param("loanPolicyId", lp.ID),
		failure.Param("loanPolicyName", lp.Name))
	return failure.Validation{{Message: message, Parameters: params}}
}

func itemLimitApplies(lp *policy.LoanPolicy) bool {
	return lp != nil && lp.HasItemLimit() && (lp.Conditions.MaterialType || lp.Conditions.LoanType)
}

// ReachedItemLimit counts open loans made under lp that share the
// constrained material and loan types of it, ignoring claimed-returned items.
// The returned ItemLimit is built fresh for every call.
func ReachedItemLimit(lp *policy.LoanPolicy, it *item.Item, open []lookup.LoanedItem) (failure.ItemLimit, bool) {
	if !itemLimitApplies(lp) || it == nil {
		return failure.ItemLimit{}, false
	}
	c := lp.Conditions
	n := 0
	for i := range open {
		if open[i].Loan.LoanPolicyID != lp.ID {
			continue
		}
		other := &open[i].Item
		if other.IsClaimedReturned() || other.ID == it.ID {
			continue
		}
		if c.MaterialType && other.MaterialTypeID != it.MaterialTypeID {
			continue
		}
		if c.LoanType && other.LoanTypeID() != it.LoanTypeID() {
			continue
		}
		n++
	}
	limit := failure.ItemLimit{
		Scope: failure.ScopeFor(c.PatronGroup, c.MaterialType, c.LoanType),
		Limit: lp.ItemLimit,
	}
	return limit, n >= lp.ItemLimit
}
