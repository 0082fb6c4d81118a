// Package validation composes circulation rules into per-operation pipelines.
//
// Each pipeline threads an aggregate of fetched records through ordered
// steps. Steps report failures to an Accumulator keyed by Category instead of
// stopping, so one rejected operation reports every simultaneous violation.
// Categories marked fatal for an operation stop the pipeline at once.
package validation

import "github.com/Strob0t/circulation/internal/domain/override"

// Category names a kind of rule violation. A category fails at most once per operation.
type Category string

const (
	ServicePointIsNotPresent     Category = "SERVICE_POINT_IS_NOT_PRESENT"
	FailedToFetchUser            Category = "FAILED_TO_FETCH_USER"
	UserIsInactive               Category = "USER_IS_INACTIVE"
	FailedToFetchProxyUser       Category = "FAILED_TO_FETCH_PROXY_USER"
	ProxyUserIsInactive          Category = "PROXY_USER_IS_INACTIVE"
	ProxyUserEqualsToUser        Category = "PROXY_USER_EQUALS_TO_USER"
	InvalidProxyRelationship     Category = "INVALID_PROXY_RELATIONSHIP"
	UserIsBlockedAutomatically   Category = "USER_IS_BLOCKED_AUTOMATICALLY"
	UserIsBlockedManually        Category = "USER_IS_BLOCKED_MANUALLY"
	FailedToFetchItem            Category = "FAILED_TO_FETCH_ITEM"
	ItemAlreadyCheckedOut        Category = "ITEM_ALREADY_CHECKED_OUT"
	ItemIsNotAllowedForCheckOut  Category = "ITEM_IS_NOT_ALLOWED_FOR_CHECK_OUT"
	ItemHasOpenLoans             Category = "ITEM_HAS_OPEN_LOANS"
	ItemRequestedByAnotherPatron Category = "ITEM_REQUESTED_BY_ANOTHER_PATRON"
	FailedToFetchLoanPolicy      Category = "FAILED_TO_FETCH_LOAN_POLICY"
	ItemIsNotLoanable            Category = "ITEM_IS_NOT_LOANABLE"
	ItemLimitIsReached           Category = "ITEM_LIMIT_IS_REACHED"

	FailedToFetchLoan         Category = "FAILED_TO_FETCH_LOAN"
	LoanIsClosed              Category = "LOAN_IS_CLOSED"
	LoanBelongsToAnotherUser  Category = "LOAN_BELONGS_TO_ANOTHER_USER"
	FailedToFetchRequestQueue Category = "FAILED_TO_FETCH_REQUEST_QUEUE"
	RenewalIsBlocked          Category = "RENEWAL_IS_BLOCKED"
	OverrideCommentIsMissing  Category = "OVERRIDE_COMMENT_IS_MISSING"
	OverrideDueDateIsMissing  Category = "OVERRIDE_DUE_DATE_IS_MISSING"

	FailedToFetchRequester        Category = "FAILED_TO_FETCH_REQUESTER"
	RequesterIsInactive           Category = "REQUESTER_IS_INACTIVE"
	FailedToFetchInstance         Category = "FAILED_TO_FETCH_INSTANCE"
	FailedToFetchRequest          Category = "FAILED_TO_FETCH_REQUEST"
	FailedToFetchRequestPolicy    Category = "FAILED_TO_FETCH_REQUEST_POLICY"
	RequestTypeNotAllowedForItem  Category = "REQUEST_TYPE_NOT_ALLOWED_FOR_ITEM"
	RequestTypeNotAllowedByPolicy Category = "REQUEST_TYPE_NOT_ALLOWED_BY_POLICY"
	RequesterAlreadyRequested     Category = "REQUESTER_ALREADY_REQUESTED"
	RequesterAlreadyHasItemOnLoan Category = "REQUESTER_ALREADY_HAS_ITEM_ON_LOAN"
	RequestLevelInvalid           Category = "REQUEST_LEVEL_INVALID"
	TitleLevelRequestsDisabled    Category = "TITLE_LEVEL_REQUESTS_DISABLED"
	DestinationIsSameItem         Category = "DESTINATION_IS_SAME_ITEM"
	DestinationInOtherInstance    Category = "DESTINATION_IN_OTHER_INSTANCE"
)

// Profile configures how an Accumulator treats categories for one operation.
type Profile struct {
	Operation string
	// Fatal categories stop the pipeline as soon as they fail.
	Fatal map[Category]bool
	// Overridable maps a category to the block that may bypass it.
	Overridable map[Category]override.Block
}

// IsFatal reports whether c stops the pipeline for this operation.
func (p Profile) IsFatal(c Category) bool { return p.Fatal[c] }

// BlockFor returns the override block for c, if any.
func (p Profile) BlockFor(c Category) (override.Block, bool) {
	b, ok := p.Overridable[c]
	return b, ok
}

func categories(cs ...Category) map[Category]bool {
	m := make(map[Category]bool, len(cs))
	for _, c := range cs {
		m[c] = true
	}
	return m
}

// CheckOutProfile applies to check-out by barcode.
var CheckOutProfile = Profile{
	Operation: "check-out",
	Fatal:     categories(),
	Overridable: map[Category]override.Block{
		UserIsBlockedAutomatically: override.BlockPatron,
		UserIsBlockedManually:      override.BlockPatron,
		ItemIsNotLoanable:          override.BlockItemNotLoanable,
		ItemLimitIsReached:         override.BlockItemLimit,
	},
}

// RenewalProfile applies to renewal. A missing or closed loan leaves nothing to check.
var RenewalProfile = Profile{
	Operation: "renewal",
	Fatal:     categories(FailedToFetchUser, FailedToFetchItem, FailedToFetchLoan, LoanIsClosed, LoanBelongsToAnotherUser),
	Overridable: map[Category]override.Block{
		UserIsBlockedAutomatically: override.BlockPatron,
		UserIsBlockedManually:      override.BlockPatron,
		RenewalIsBlocked:           override.BlockRenewal,
	},
}

// RequestCreationProfile applies to placing a request.
var RequestCreationProfile = Profile{
	Operation: "request-creation",
	Fatal:     categories(RequestLevelInvalid, TitleLevelRequestsDisabled, FailedToFetchRequester),
	Overridable: map[Category]override.Block{
		UserIsBlockedAutomatically: override.BlockPatron,
	},
}

// RequestMoveProfile applies to moving a request to another item.
var RequestMoveProfile = Profile{
	Operation:   "request-move",
	Fatal:       categories(FailedToFetchRequest, FailedToFetchItem, DestinationIsSameItem, DestinationInOtherInstance),
	Overridable: map[Category]override.Block{},
}
