package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	cirotel "github.com/Strob0t/circulation/internal/adapter/otel"
	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/domain/user"
	"github.com/Strob0t/circulation/internal/port/database"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
	"github.com/Strob0t/circulation/internal/validation"
)

// RequestService places and moves requests.
type RequestService struct {
	lookups    lookup.Set
	store      database.Store
	queue      messagequeue.Queue
	observer   validation.Observer
	titleLevel bool
	now        func() time.Time
}

// NewRequestService creates a new RequestService. titleLevel enables
// title-level requests.
func NewRequestService(l lookup.Set, store database.Store, queue messagequeue.Queue, obs validation.Observer, titleLevel bool) *RequestService {
	return &RequestService{lookups: l, store: store, queue: queue, observer: obs, titleLevel: titleLevel, now: utcNow}
}

// Create validates req and appends the new request to the end of its queue.
func (s *RequestService) Create(ctx context.Context, req request.CreateRequest, ov override.Request, op user.Operator) (_ *Receipt[*request.Request], err error) {
	ctx, span := cirotel.StartOperationSpan(ctx, "request-creation",
		attribute.String("request.type", string(req.Type)), attribute.String("request.level", string(req.Level)))
	defer func() { cirotel.EndSpan(span, err) }()

	now := s.now()
	acc := validation.NewAccumulator(validation.RequestCreationProfile)
	out := validation.RequestCreation(s.lookups, gate(ov, op, s.now), acc).
		Observe(s.observer).
		Run(ctx, validation.RequestRecords{Request: req, Now: now, TitleLevelEnabled: s.titleLevel})
	if err := refusal(out); err != nil {
		return nil, err
	}

	rec := out.Aggregate
	r := request.Request{
		ID:                   uuid.NewString(),
		TenantID:             op.TenantID,
		RequesterID:          req.RequesterID,
		ProxyUserID:          req.ProxyUserID,
		ItemID:               req.ItemID,
		InstanceID:           req.InstanceID,
		Type:                 req.Type,
		Status:               request.StatusOpenNotYetFilled,
		Level:                req.Level,
		RequestDate:          now,
		PickupServicePointID: req.PickupServicePointID,
	}
	if rec.Item != nil && r.InstanceID == "" {
		r.InstanceID = rec.Item.InstanceID
	}

	q := rec.Queue
	if q == nil {
		q = emptyQueue(r)
	}
	stored := q.Add(r)
	if err := s.store.CreateRequest(ctx, &stored, q); err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	publish(ctx, s.queue, messagequeue.SubjectRequestCreated, messagequeue.RequestPayload{
		RequestID:   stored.ID,
		RequesterID: stored.RequesterID,
		ItemID:      stored.ItemID,
		InstanceID:  stored.InstanceID,
		Type:        string(stored.Type),
		Level:       string(stored.Level),
		Position:    stored.Position,
	})
	publishOverrides(ctx, s.queue, stored.ID, out.Overrides)
	return &Receipt[*request.Request]{Record: &stored, Overrides: out.Overrides}, nil
}

// Move transfers request id to another item. An item-level request leaves
// the source queue and joins the end of the destination queue; both stay
// numbered 1..N. A title-level request keeps its place in the instance queue.
func (s *RequestService) Move(ctx context.Context, id string, m request.MoveRequest) (_ *Receipt[*request.Request], err error) {
	ctx, span := cirotel.StartOperationSpan(ctx, "request-move", attribute.String("request.id", id))
	defer func() { cirotel.EndSpan(span, err) }()

	acc := validation.NewAccumulator(validation.RequestMoveProfile)
	out := validation.RequestMove(s.lookups, acc).
		Observe(s.observer).
		Run(ctx, validation.MoveRecords{RequestID: id, Move: m, Now: s.now()})
	if err := refusal(out); err != nil {
		return nil, err
	}

	rec := out.Aggregate
	moved := *rec.Request
	moved.ItemID = rec.Destination.ID
	moved.InstanceID = rec.Destination.InstanceID
	moved.Type = rec.TargetType()

	if rec.Request.Level == request.LevelTitle {
		moved, err = s.moveWithinInstance(ctx, moved, rec.Queue)
	} else {
		moved, err = s.moveBetweenItems(ctx, moved, rec.Request.ItemID, rec.Queue)
	}
	if err != nil {
		return nil, err
	}

	publish(ctx, s.queue, messagequeue.SubjectRequestMoved, messagequeue.RequestMovedPayload{
		RequestID:         moved.ID,
		SourceItemID:      rec.Request.ItemID,
		DestinationItemID: moved.ItemID,
		Type:              string(moved.Type),
		Position:          moved.Position,
	})
	return &Receipt[*request.Request]{Record: &moved}, nil
}

func (s *RequestService) moveWithinInstance(ctx context.Context, moved request.Request, q *request.Queue) (request.Request, error) {
	if q == nil {
		return request.Request{}, fmt.Errorf("request %s has no instance queue: %w", moved.ID, domain.ErrConflict)
	}
	stored, ok := q.Replace(moved)
	if !ok {
		return request.Request{}, fmt.Errorf("request %s not in instance queue %s: %w", moved.ID, q.Key, domain.ErrConflict)
	}
	if err := s.store.MoveRequest(ctx, &stored, q, q); err != nil {
		return request.Request{}, fmt.Errorf("move request %s: %w", moved.ID, err)
	}
	return stored, nil
}

func (s *RequestService) moveBetweenItems(ctx context.Context, moved request.Request, fromItem string, dst *request.Queue) (request.Request, error) {
	src, err := s.lookups.RequestQueues.QueueForItem(ctx, fromItem)
	if err != nil {
		return request.Request{}, fmt.Errorf("load source queue: %w", err)
	}
	if !src.Remove(moved.ID) {
		return request.Request{}, fmt.Errorf("request %s not in item queue %s: %w", moved.ID, fromItem, domain.ErrConflict)
	}
	if dst == nil {
		dst = emptyQueue(moved)
	}
	moved = dst.Add(moved)
	if err := s.store.MoveRequest(ctx, &moved, src, dst); err != nil {
		return request.Request{}, fmt.Errorf("move request %s: %w", moved.ID, err)
	}
	return moved, nil
}

func emptyQueue(r request.Request) *request.Queue {
	if r.Level == request.LevelTitle {
		return &request.Queue{Scope: request.ScopeInstance, Key: r.InstanceID}
	}
	return &request.Queue{Scope: request.ScopeItem, Key: r.ItemID}
}
