package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/item"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/policy"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/domain/result"
	"github.com/Strob0t/circulation/internal/port/lookup"
)

// RequestRecords is everything placing a request is validated against.
type RequestRecords struct {
	Request           request.CreateRequest
	Now               time.Time
	TitleLevelEnabled bool
	Requester         *patron.Patron
	AutomatedBlocks   []patron.AutomatedBlock
	ManualBlocks      []patron.ManualBlock
	Item              *item.Item
	InstanceItems     []item.Item
	RequestPolicy     *policy.RequestPolicy
	Queue             *request.Queue
	Loans             []lookup.LoanedItem
}

func (r RequestRecords) isTitleLevel() bool { return r.Request.Level == request.LevelTitle }

func (r RequestRecords) requestedType() string { return string(r.Request.Type) }

// RequestCreation builds the pipeline that validates a new request.
func RequestCreation(l lookup.Set, g Gate, acc *Accumulator) *Pipeline[RequestRecords] {
	p := NewPipeline[RequestRecords](acc)

	p.Refuse(RefuseWhen(RequestLevelInvalid,
		func(r RequestRecords) bool {
			switch r.Request.Level {
			case request.LevelItem:
				return r.Request.ItemID == ""
			case request.LevelTitle:
				return r.Request.InstanceID == ""
			}
			return true
		},
		func(r RequestRecords) failure.Cause {
			switch r.Request.Level {
			case request.LevelItem:
				return failure.Single("Cannot create an item level request with no item ID", "itemId", "")
			case request.LevelTitle:
				return failure.Single("Cannot create a title level request with no instance ID", "instanceId", "")
			}
			return failure.Single(`Request level must be one of the following: "Item", "Title"`,
				"requestLevel", string(r.Request.Level))
		}))
	p.Refuse(RefuseWhen(TitleLevelRequestsDisabled,
		func(r RequestRecords) bool { return r.isTitleLevel() && !r.TitleLevelEnabled },
		Message("Can not create a title level request, TLR feature status is DISABLED.", "requestLevel",
			func(r RequestRecords) string { return string(r.Request.Level) })))

	p.Then(Fetch(acc, Fetching[RequestRecords, *patron.Patron]{
		Category: FailedToFetchRequester,
		Lookup: func(r RequestRecords) result.Task[*patron.Patron] {
			id := r.Request.RequesterID
			return orNotFound(find(func(ctx context.Context) (*patron.Patron, error) {
				return l.Patrons.PatronByID(ctx, id)
			}, "user", id), func() failure.Cause {
				return failure.Single("A valid user is required to place a request", "requesterId", id)
			})
		},
		Set: func(r RequestRecords, u *patron.Patron) RequestRecords { r.Requester = u; return r },
	}))
	p.Refuse(RefuseWhen(RequesterIsInactive,
		func(r RequestRecords) bool { return !r.Requester.IsActive(r.Now) },
		Message("Inactive users cannot make requests", "requesterId",
			func(r RequestRecords) string { return r.Request.RequesterID })))

	p.Then(fetchBlocks(l, acc, func(r RequestRecords) *patron.Patron { return r.Requester },
		func(r RequestRecords, b []patron.AutomatedBlock) RequestRecords { r.AutomatedBlocks = b; return r },
		func(r RequestRecords, b []patron.ManualBlock) RequestRecords { r.ManualBlocks = b; return r }))
	p.Refuse(ManualBlockRule(patron.ActionRequesting,
		func(r RequestRecords) ([]patron.ManualBlock, time.Time) { return r.ManualBlocks, r.Now }))
	p.Block(AutomatedBlockRule(patron.ActionRequesting,
		func(r RequestRecords) []patron.AutomatedBlock { return r.AutomatedBlocks }),
		override.BlockPatron, g)

	p.Then(FetchBoth(acc,
		Fetching[RequestRecords, *item.Item]{
			Category: FailedToFetchItem,
			Lookup: func(r RequestRecords) result.Task[*item.Item] {
				id := r.Request.ItemID
				if id == "" {
					return nil
				}
				return orNotFound(find(func(ctx context.Context) (*item.Item, error) {
					return l.Items.ItemByID(ctx, id)
				}, "item", id), func() failure.Cause {
					return failure.Single("Item does not exist", "itemId", id)
				})
			},
			Set: func(r RequestRecords, it *item.Item) RequestRecords { r.Item = it; return r },
		},
		Fetching[RequestRecords, []item.Item]{
			Category: FailedToFetchInstance,
			Lookup: func(r RequestRecords) result.Task[[]item.Item] {
				id := r.Request.InstanceID
				if !r.isTitleLevel() {
					return nil
				}
				return orNotFound(result.Lookup(func(ctx context.Context) ([]item.Item, error) {
					return l.Items.ItemsByInstance(ctx, id)
				}, "instance", id), func() failure.Cause {
					return failure.Single("Instance does not exist", "instanceId", id)
				})
			},
			Set: func(r RequestRecords, items []item.Item) RequestRecords { r.InstanceItems = items; return r },
		}))

	targetMissing := []Category{FailedToFetchItem, FailedToFetchInstance}

	p.Refuse(RefuseWhen(RequestTypeNotAllowedForItem,
		func(r RequestRecords) bool {
			if r.Item != nil {
				return !r.Item.AllowsRequestType(r.requestedType())
			}
			for i := range r.InstanceItems {
				if r.InstanceItems[i].AllowsRequestType(r.requestedType()) {
					return false
				}
			}
			return r.isTitleLevel() && r.Request.Type != request.TypeHold
		},
		func(r RequestRecords) failure.Cause {
			return failure.Single(fmt.Sprintf("%s requests are not allowed for this patron and item combination", r.Request.Type),
				"requestType", r.requestedType())
		}),
		targetMissing...)

	p.Then(Fetch(acc, Fetching[RequestRecords, *policy.RequestPolicy]{
		Category: FailedToFetchRequestPolicy,
		SkipIf:   targetMissing,
		Lookup: func(r RequestRecords) result.Task[*policy.RequestPolicy] {
			if r.Item == nil {
				return nil
			}
			c := policy.Criteria{
				PatronGroupID:  r.Requester.PatronGroupID,
				MaterialTypeID: r.Item.MaterialTypeID,
				LoanTypeID:     r.Item.LoanTypeID(),
			}
			return find(func(ctx context.Context) (*policy.RequestPolicy, error) {
				return l.Policies.RequestPolicyFor(ctx, c)
			}, "request policy", c.LoanTypeID)
		},
		Set: func(r RequestRecords, rp *policy.RequestPolicy) RequestRecords { r.RequestPolicy = rp; return r },
	}))
	p.Refuse(RefuseWhen(RequestTypeNotAllowedByPolicy,
		func(r RequestRecords) bool {
			return r.RequestPolicy != nil && !r.RequestPolicy.Allows(policy.RequestType(r.Request.Type))
		},
		func(r RequestRecords) failure.Cause {
			return failure.Single(fmt.Sprintf("%s requests are not allowed for this patron and item combination", r.Request.Type),
				"requestType", r.requestedType())
		}),
		append(targetMissing, FailedToFetchRequestPolicy, RequestTypeNotAllowedForItem)...)

	p.Then(Fetch(acc, Fetching[RequestRecords, *request.Queue]{
		Category: FailedToFetchRequestQueue,
		SkipIf:   targetMissing,
		Lookup: func(r RequestRecords) result.Task[*request.Queue] {
			if r.isTitleLevel() {
				id := r.Request.InstanceID
				return find(func(ctx context.Context) (*request.Queue, error) {
					return l.RequestQueues.QueueForInstance(ctx, id)
				}, "request queue", id)
			}
			id := r.Request.ItemID
			return find(func(ctx context.Context) (*request.Queue, error) {
				return l.RequestQueues.QueueForItem(ctx, id)
			}, "request queue", id)
		},
		Set: func(r RequestRecords, q *request.Queue) RequestRecords { r.Queue = q; return r },
	}))
	p.Refuse(alreadyRequestedRule(func(r RequestRecords) (string, *request.Queue, bool) {
		return r.Request.RequesterID, r.Queue, r.isTitleLevel()
	}), append(targetMissing, FailedToFetchRequestQueue)...)

	p.Then(Fetch(acc, Fetching[RequestRecords, []lookup.LoanedItem]{
		Category: FailedToFetchLoan,
		SkipIf:   targetMissing,
		Lookup: func(r RequestRecords) result.Task[[]lookup.LoanedItem] {
			id := r.Request.RequesterID
			return result.Lookup(func(ctx context.Context) ([]lookup.LoanedItem, error) {
				return l.Loans.OpenLoansWithItems(ctx, id)
			}, "loan", id)
		},
		Set: func(r RequestRecords, loans []lookup.LoanedItem) RequestRecords { r.Loans = loans; return r },
	}))
	p.Refuse(RefuseWhen(RequesterAlreadyHasItemOnLoan,
		func(r RequestRecords) bool {
			for i := range r.Loans {
				if r.isTitleLevel() && r.Loans[i].Item.InstanceID == r.Request.InstanceID {
					return true
				}
				if !r.isTitleLevel() && r.Loans[i].Loan.ItemID == r.Request.ItemID {
					return true
				}
			}
			return false
		},
		func(r RequestRecords) failure.Cause {
			if r.isTitleLevel() {
				return failure.Single("This requester already has a loan for one of the instance's items",
					"instanceId", r.Request.InstanceID)
			}
			return failure.Single("This requester already has this item on loan", "itemId", r.Request.ItemID)
		}),
		append(targetMissing, FailedToFetchLoan)...)

	return p
}

// alreadyRequestedRule refuses when the requester holds an open request in
// the queue.
func alreadyRequestedRule[A any](in func(A) (requesterID string, q *request.Queue, titleLevel bool)) Rule[A] {
	existing := func(a A) (request.Request, bool) {
		id, q, _ := in(a)
		if q == nil {
			return request.Request{}, false
		}
		for _, r := range q.Requests {
			if r.RequesterID == id && r.IsOpen() {
				return r, true
			}
		}
		return request.Request{}, false
	}
	return RefuseWhen(RequesterAlreadyRequested,
		func(a A) bool {
			_, found := existing(a)
			return found
		},
		func(a A) failure.Cause {
			r, _ := existing(a)
			_, _, titleLevel := in(a)
			switch {
			case !titleLevel:
				return failure.Single("This requester already has an open request for this item", "itemId", r.ItemID)
			case r.Level == request.LevelTitle:
				return failure.Single("This requester already has an open request for this instance", "instanceId", r.InstanceID)
			}
			return failure.Single("This requester already has an open request for one of the instance's items",
				"instanceId", r.InstanceID)
		})
}

// MoveRecords is everything moving a request to another item is validated against.
// Queue is the destination item queue, or the instance queue of a title-level
// request.
type MoveRecords struct {
	RequestID   string
	Move        request.MoveRequest
	Now         time.Time
	Request     *request.Request
	Destination *item.Item
	Requester   *patron.Patron
	Policy      *policy.RequestPolicy
	Queue       *request.Queue
}

// TargetType is the request type after the move.
func (r MoveRecords) TargetType() request.Type {
	if r.Move.RequestType != "" {
		return r.Move.RequestType
	}
	return r.Request.Type
}

// RequestMove builds the pipeline that validates moving a request.
func RequestMove(l lookup.Set, acc *Accumulator) *Pipeline[MoveRecords] {
	p := NewPipeline[MoveRecords](acc)

	p.Then(Fetch(acc, Fetching[MoveRecords, *request.Request]{
		Category: FailedToFetchRequest,
		Lookup: func(r MoveRecords) result.Task[*request.Request] {
			id := r.RequestID
			return find(func(ctx context.Context) (*request.Request, error) {
				return l.RequestQueues.RequestByID(ctx, id)
			}, "request", id)
		},
		Set: func(r MoveRecords, req *request.Request) MoveRecords { r.Request = req; return r },
	}))
	p.Then(Fetch(acc, Fetching[MoveRecords, *item.Item]{
		Category: FailedToFetchItem,
		Lookup: func(r MoveRecords) result.Task[*item.Item] {
			id := r.Move.DestinationItemID
			return orNotFound(find(func(ctx context.Context) (*item.Item, error) {
				return l.Items.ItemByID(ctx, id)
			}, "item", id), func() failure.Cause {
				return failure.Single("Item does not exist", "itemId", id)
			})
		},
		Set: func(r MoveRecords, it *item.Item) MoveRecords { r.Destination = it; return r },
	}))
	p.Refuse(RefuseWhen(DestinationIsSameItem,
		func(r MoveRecords) bool { return r.Request.ItemID == r.Destination.ID },
		Message("Not allowed to move request to the same item", "destinationItemId",
			func(r MoveRecords) string { return r.Destination.ID })))
	p.Refuse(RefuseWhen(DestinationInOtherInstance,
		func(r MoveRecords) bool {
			return r.Request.Level == request.LevelTitle && r.Destination.InstanceID != r.Request.InstanceID
		},
		Message("Title level request can only be moved to an item of the same instance", "destinationItemId",
			func(r MoveRecords) string { return r.Destination.ID })))

	p.Then(Fetch(acc, Fetching[MoveRecords, *patron.Patron]{
		Category: FailedToFetchRequester,
		Lookup: func(r MoveRecords) result.Task[*patron.Patron] {
			id := r.Request.RequesterID
			return find(func(ctx context.Context) (*patron.Patron, error) {
				return l.Patrons.PatronByID(ctx, id)
			}, "user", id)
		},
		Set: func(r MoveRecords, u *patron.Patron) MoveRecords { r.Requester = u; return r },
	}))

	p.Refuse(RefuseWhen(RequestTypeNotAllowedForItem,
		func(r MoveRecords) bool { return !r.Destination.AllowsRequestType(string(r.TargetType())) },
		func(r MoveRecords) failure.Cause {
			return failure.Single(fmt.Sprintf("%s requests are not allowed for this patron and item combination", r.TargetType()),
				"requestType", string(r.TargetType()))
		}))

	p.Then(Fetch(acc, Fetching[MoveRecords, *policy.RequestPolicy]{
		Category: FailedToFetchRequestPolicy,
		SkipIf:   []Category{FailedToFetchRequester},
		Lookup: func(r MoveRecords) result.Task[*policy.RequestPolicy] {
			c := policy.Criteria{
				PatronGroupID:  r.Requester.PatronGroupID,
				MaterialTypeID: r.Destination.MaterialTypeID,
				LoanTypeID:     r.Destination.LoanTypeID(),
			}
			return find(func(ctx context.Context) (*policy.RequestPolicy, error) {
				return l.Policies.RequestPolicyFor(ctx, c)
			}, "request policy", c.LoanTypeID)
		},
		Set: func(r MoveRecords, rp *policy.RequestPolicy) MoveRecords { r.Policy = rp; return r },
	}))
	p.Refuse(RefuseWhen(RequestTypeNotAllowedByPolicy,
		func(r MoveRecords) bool { return !r.Policy.Allows(policy.RequestType(r.TargetType())) },
		func(r MoveRecords) failure.Cause {
			return failure.Single(fmt.Sprintf("%s requests are not allowed for this patron and item combination", r.TargetType()),
				"requestType", string(r.TargetType()))
		}),
		FailedToFetchRequester, FailedToFetchRequestPolicy, RequestTypeNotAllowedForItem)

	p.Then(Fetch(acc, Fetching[MoveRecords, *request.Queue]{
		Category: FailedToFetchRequestQueue,
		Lookup: func(r MoveRecords) result.Task[*request.Queue] {
			if r.Request.Level == request.LevelTitle {
				id := r.Request.InstanceID
				return find(func(ctx context.Context) (*request.Queue, error) {
					return l.RequestQueues.QueueForInstance(ctx, id)
				}, "request queue", id)
			}
			id := r.Destination.ID
			return find(func(ctx context.Context) (*request.Queue, error) {
				return l.RequestQueues.QueueForItem(ctx, id)
			}, "request queue", id)
		},
		Set: func(r MoveRecords, q *request.Queue) MoveRecords { r.Queue = q; return r },
	}))
	// A title-level request stays in its own instance queue.
	p.Refuse(alreadyRequestedRule(func(r MoveRecords) (string, *request.Queue, bool) {
		if r.Request.Level == request.LevelTitle {
			return r.Request.RequesterID, nil, true
		}
		return r.Request.RequesterID, r.Queue, false
	}), FailedToFetchRequestQueue)

	return p
}
