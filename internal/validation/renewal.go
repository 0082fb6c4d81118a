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

// RenewalRecords is everything a renewal is validated against.
type RenewalRecords struct {
	Request         loan.RenewRequest
	Now             time.Time
	User            *patron.Patron
	Item            *item.Item
	Loan            *loan.Loan
	AutomatedBlocks []patron.AutomatedBlock
	ManualBlocks    []patron.ManualBlock
	Queue           *request.Queue
	LoanPolicy      *policy.LoanPolicy
}

// renewalChecks are the policy checks a renewalBlock override bypasses as a
// whole. Each reports its message and whether it refuses the renewal.
var renewalChecks = []func(r RenewalRecords) (string, bool){
	func(r RenewalRecords) (string, bool) {
		return "items cannot be renewed when there is an active recall request", headIs(r.Queue, request.TypeRecall)
	},
	func(r RenewalRecords) (string, bool) {
		return "item is not loanable", !r.LoanPolicy.Loanable
	},
	func(r RenewalRecords) (string, bool) {
		return "loan is not renewable", r.LoanPolicy.Loanable && !r.LoanPolicy.Renewable
	},
	func(r RenewalRecords) (string, bool) {
		return "Items with this loan policy cannot be renewed when there is an active, pending hold request",
			headIs(r.Queue, request.TypeHold) && !r.LoanPolicy.RenewItemsWithHold
	},
	func(r RenewalRecords) (string, bool) {
		return fmt.Sprintf("item is %s", r.Item.Status),
			r.Item.IsDeclaredLost() || r.Item.IsClaimedReturned() || r.Item.IsAgedToLost()
	},
	func(r RenewalRecords) (string, bool) {
		return "loan at maximum renewal number",
			r.LoanPolicy.Renewable && r.LoanPolicy.RenewalLimitReached(r.Loan.RenewalCount)
	},
}

func headIs(q *request.Queue, t request.Type) bool {
	if q == nil {
		return false
	}
	head, ok := q.Head()
	return ok && head.Type == t
}

// RenewalBlockRule folds every failing renewal check into one failure.
func RenewalBlockRule() Rule[RenewalRecords] {
	return RefuseWhen(RenewalIsBlocked,
		func(r RenewalRecords) bool {
			for _, check := range renewalChecks {
				if _, refused := check(r); refused {
					return true
				}
			}
			return false
		},
		func(r RenewalRecords) failure.Cause {
			var v failure.Validation
			for _, check := range renewalChecks {
				if msg, refused := check(r); refused {
					v = append(v, loanPolicyError(r.LoanPolicy, msg)...)
				}
			}
			return v
		})
}

// Renewal builds the renew-by-barcode pipeline for one operation.
func Renewal(l lookup.Set, g Gate, acc *Accumulator) *Pipeline[RenewalRecords] {
	p := NewPipeline[RenewalRecords](acc)

	p.Then(FetchBoth(acc,
		Fetching[RenewalRecords, *patron.Patron]{
			Category: FailedToFetchUser,
			Lookup: func(r RenewalRecords) result.Task[*patron.Patron] {
				bc := r.Request.UserBarcode
				return orNotFound(find(func(ctx context.Context) (*patron.Patron, error) {
					return l.Patrons.PatronByBarcode(ctx, bc)
				}, "user", bc), func() failure.Cause {
					return failure.Single("Could not find user with matching barcode", "userBarcode", bc)
				})
			},
			Set: func(r RenewalRecords, u *patron.Patron) RenewalRecords { r.User = u; return r },
		},
		Fetching[RenewalRecords, *item.Item]{
			Category: FailedToFetchItem,
			Lookup: func(r RenewalRecords) result.Task[*item.Item] {
				bc := r.Request.ItemBarcode
				return orNotFound(find(func(ctx context.Context) (*item.Item, error) {
					return l.Items.ItemByBarcode(ctx, bc)
				}, "item", bc), func() failure.Cause {
					return failure.Single(fmt.Sprintf("No item with barcode %s could be found", bc), "itemBarcode", bc)
				})
			},
			Set: func(r RenewalRecords, it *item.Item) RenewalRecords { r.Item = it; return r },
		}))

	p.Then(Fetch(acc, Fetching[RenewalRecords, *loan.Loan]{
		Category: FailedToFetchLoan,
		Lookup: func(r RenewalRecords) result.Task[*loan.Loan] {
			id, bc := r.Item.ID, r.Request.ItemBarcode
			return orNotFound(find(func(ctx context.Context) (*loan.Loan, error) {
				return l.Loans.OpenLoanForItem(ctx, id)
			}, "loan", id), func() failure.Cause {
				return failure.Single(fmt.Sprintf("No open loan for item with barcode %s", bc), "itemBarcode", bc)
			})
		},
		Set: func(r RenewalRecords, ln *loan.Loan) RenewalRecords { r.Loan = ln; return r },
	}))
	p.Refuse(RefuseWhen(LoanIsClosed,
		func(r RenewalRecords) bool { return !r.Loan.IsOpen() },
		Message("Loan is closed", "loanId", func(r RenewalRecords) string { return r.Loan.ID })))
	p.Refuse(RefuseWhen(LoanBelongsToAnotherUser,
		func(r RenewalRecords) bool { return r.Loan.UserID != r.User.ID },
		Message("Cannot renew item checked out to different user", "userBarcode",
			func(r RenewalRecords) string { return r.Request.UserBarcode })))

	p.Then(fetchBlocks(l, acc, func(r RenewalRecords) *patron.Patron { return r.User },
		func(r RenewalRecords, b []patron.AutomatedBlock) RenewalRecords { r.AutomatedBlocks = b; return r },
		func(r RenewalRecords, b []patron.ManualBlock) RenewalRecords { r.ManualBlocks = b; return r }))
	p.Block(AutomatedBlockRule(patron.ActionRenewing,
		func(r RenewalRecords) []patron.AutomatedBlock { return r.AutomatedBlocks }),
		override.BlockPatron, g)
	p.Block(ManualBlockRule(patron.ActionRenewing,
		func(r RenewalRecords) ([]patron.ManualBlock, time.Time) { return r.ManualBlocks, r.Now }),
		override.BlockPatron, g)

	p.Then(FetchBoth(acc,
		Fetching[RenewalRecords, *request.Queue]{
			Category: FailedToFetchRequestQueue,
			Lookup: func(r RenewalRecords) result.Task[*request.Queue] {
				id := r.Item.ID
				return find(func(ctx context.Context) (*request.Queue, error) {
					return l.RequestQueues.QueueForItem(ctx, id)
				}, "request queue", id)
			},
			Set: func(r RenewalRecords, q *request.Queue) RenewalRecords { r.Queue = q; return r },
		},
		Fetching[RenewalRecords, *policy.LoanPolicy]{
			Category: FailedToFetchLoanPolicy,
			Lookup: func(r RenewalRecords) result.Task[*policy.LoanPolicy] {
				c := policy.Criteria{
					PatronGroupID:  r.User.PatronGroupID,
					MaterialTypeID: r.Item.MaterialTypeID,
					LoanTypeID:     r.Item.LoanTypeID(),
				}
				return find(func(ctx context.Context) (*policy.LoanPolicy, error) {
					return l.Policies.LoanPolicyFor(ctx, c)
				}, "loan policy", c.LoanTypeID)
			},
			Set: func(r RenewalRecords, lp *policy.LoanPolicy) RenewalRecords { r.LoanPolicy = lp; return r },
		}))

	p.Block(RenewalBlockRule(), override.BlockRenewal, g, FailedToFetchLoanPolicy, FailedToFetchRequestQueue)

	if g.Request.Requested(override.BlockRenewal) {
		p.Refuse(RefuseWhen(OverrideCommentIsMissing,
			func(RenewalRecords) bool { return g.Request.Comment == "" },
			Message("Override renewal request must have a comment", "comment",
				func(RenewalRecords) string { return "" })))
		p.Refuse(RefuseWhen(OverrideDueDateIsMissing,
			func(r RenewalRecords) bool {
				return g.Request.DueDate == nil && !(r.LoanPolicy.Loanable && r.LoanPolicy.Renewable)
			},
			Message("New due date must be specified when due date calculation fails", "dueDate",
				func(RenewalRecords) string { return "" })),
			FailedToFetchLoanPolicy)
	}

	return p
}

// RenewalDueDate returns the due date a successful renewal sets. An override
// due date wins over the policy.
func RenewalDueDate(r RenewalRecords, g Gate) time.Time {
	if g.Request.Requested(override.BlockRenewal) && g.Request.DueDate != nil {
		return *g.Request.DueDate
	}
	if r.LoanPolicy == nil {
		return r.Loan.DueDate
	}
	return r.LoanPolicy.RenewalDueDate(r.Now)
}
