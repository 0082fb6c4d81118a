package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	cirotel "github.com/Strob0t/circulation/internal/adapter/otel"
	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/user"
	"github.com/Strob0t/circulation/internal/port/database"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
	"github.com/Strob0t/circulation/internal/validation"
)

// CheckOutService lends items to patrons.
type CheckOutService struct {
	lookups  lookup.Set
	store    database.Store
	queue    messagequeue.Queue
	observer validation.Observer
	now      func() time.Time
}

// NewCheckOutService creates a new CheckOutService.
func NewCheckOutService(l lookup.Set, store database.Store, queue messagequeue.Queue, obs validation.Observer) *CheckOutService {
	return &CheckOutService{lookups: l, store: store, queue: queue, observer: obs, now: utcNow}
}

// CheckOut validates req and, when every rule passes or is overridden,
// creates the loan.
func (s *CheckOutService) CheckOut(ctx context.Context, req loan.CheckOutRequest, ov override.Request, op user.Operator) (_ *Receipt[*loan.Loan], err error) {
	ctx, span := cirotel.StartOperationSpan(ctx, "check-out", attribute.String("item.barcode", req.ItemBarcode))
	defer func() { cirotel.EndSpan(span, err) }()

	now := s.now()
	g := gate(ov, op, s.now)
	acc := validation.NewAccumulator(validation.CheckOutProfile)
	out := validation.CheckOut(s.lookups, g, acc).
		Observe(s.observer).
		Run(ctx, validation.CheckOutRecords{Request: req, Now: now})
	if err := refusal(out); err != nil {
		return nil, err
	}

	rec := out.Aggregate
	loanDate := req.LoanDate
	if loanDate.IsZero() {
		loanDate = now
	}
	l := &loan.Loan{
		ID:                     uuid.NewString(),
		TenantID:               op.TenantID,
		ItemID:                 rec.Item.ID,
		UserID:                 rec.User.ID,
		Status:                 loan.StatusOpen,
		Action:                 loan.ActionCheckedOut,
		LoanDate:               loanDate,
		DueDate:                checkOutDueDate(rec, ov, loanDate),
		LoanPolicyID:           rec.LoanPolicy.ID,
		CheckoutServicePointID: req.ServicePointID,
	}
	if rec.Proxy != nil {
		l.ProxyUserID = rec.Proxy.ID
	}
	if len(out.Overrides) > 0 {
		l.Action = loan.ActionCheckedOutThroughOverride
		l.ActionComment = ov.Comment
	}

	if err := s.store.CreateLoan(ctx, l); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	publish(ctx, s.queue, messagequeue.SubjectLoanCheckedOut, loanPayload(l, op.ID))
	publishOverrides(ctx, s.queue, l.ID, out.Overrides)
	return &Receipt[*loan.Loan]{Record: l, Overrides: out.Overrides}, nil
}

// checkOutDueDate uses the override due date when the not-loanable block was
// bypassed; the policy has no loan period to offer in that case.
func checkOutDueDate(rec validation.CheckOutRecords, ov override.Request, from time.Time) time.Time {
	if ov.Requested(override.BlockItemNotLoanable) && ov.DueDate != nil {
		return *ov.DueDate
	}
	return rec.LoanPolicy.DueDate(from)
}
