package service

import (
	"context"
	"fmt"
	"time"

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

// RenewalService extends open loans.
type RenewalService struct {
	lookups  lookup.Set
	store    database.Store
	queue    messagequeue.Queue
	observer validation.Observer
	now      func() time.Time
}

// NewRenewalService creates a new RenewalService.
func NewRenewalService(l lookup.Set, store database.Store, queue messagequeue.Queue, obs validation.Observer) *RenewalService {
	return &RenewalService{lookups: l, store: store, queue: queue, observer: obs, now: utcNow}
}

// Renew validates req and extends the loan. A loan changed concurrently
// yields domain.ErrConflict.
func (s *RenewalService) Renew(ctx context.Context, req loan.RenewRequest, ov override.Request, op user.Operator) (_ *Receipt[*loan.Loan], err error) {
	ctx, span := cirotel.StartOperationSpan(ctx, "renewal", attribute.String("item.barcode", req.ItemBarcode))
	defer func() { cirotel.EndSpan(span, err) }()

	g := gate(ov, op, s.now)
	acc := validation.NewAccumulator(validation.RenewalProfile)
	out := validation.Renewal(s.lookups, g, acc).
		Observe(s.observer).
		Run(ctx, validation.RenewalRecords{Request: req, Now: s.now()})
	if err := refusal(out); err != nil {
		return nil, err
	}

	l := *out.Aggregate.Loan
	action, comment := loan.ActionRenewed, ""
	if len(out.Overrides) > 0 {
		action, comment = loan.ActionRenewedThroughOverride, ov.Comment
	}
	l.Renew(validation.RenewalDueDate(out.Aggregate, g), action, comment)

	if err := s.store.UpdateLoan(ctx, &l); err != nil {
		return nil, fmt.Errorf("renew loan %s: %w", l.ID, err)
	}

	publish(ctx, s.queue, messagequeue.SubjectLoanRenewed, loanPayload(&l, op.ID))
	publishOverrides(ctx, s.queue, l.ID, out.Overrides)
	return &Receipt[*loan.Loan]{Record: &l, Overrides: out.Overrides}, nil
}
