package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	cirotel "github.com/Strob0t/circulation/internal/adapter/otel"
	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/port/database"
	"github.com/Strob0t/circulation/internal/port/lookup"
	"github.com/Strob0t/circulation/internal/port/messagequeue"
	"github.com/Strob0t/circulation/internal/validation"
)

// QueueService reads and reorders request queues.
type QueueService struct {
	queues     lookup.RequestQueues
	store      database.Store
	queue      messagequeue.Queue
	titleLevel bool
}

// NewQueueService creates a new QueueService.
func NewQueueService(queues lookup.RequestQueues, store database.Store, queue messagequeue.Queue, titleLevel bool) *QueueService {
	return &QueueService{queues: queues, store: store, queue: queue, titleLevel: titleLevel}
}

// Get returns the queue for an item or an instance.
func (s *QueueService) Get(ctx context.Context, scope request.Scope, key string) (*request.Queue, error) {
	switch scope {
	case request.ScopeItem:
		return s.queues.QueueForItem(ctx, key)
	case request.ScopeInstance:
		return s.queues.QueueForInstance(ctx, key)
	}
	return nil, fmt.Errorf("queue scope %q: %w", scope, domain.ErrValidation)
}

// Reorder applies sub to a freshly read queue. The write is conditional on
// the version that was read; a queue changed in between yields
// domain.ErrConflict and the caller retries against the new state.
func (s *QueueService) Reorder(ctx context.Context, scope request.Scope, key string, sub request.ReorderSubmission) (_ *request.Queue, err error) {
	ctx, span := cirotel.StartOperationSpan(ctx, "queue-reorder",
		attribute.String("queue.scope", string(scope)), attribute.String("queue.key", key))
	defer func() { cirotel.EndSpan(span, err) }()

	q, err := s.Get(ctx, scope, key)
	if err != nil {
		return nil, err
	}

	r := validation.ValidateReorder(sub, q, s.titleLevel)
	if r.Failed() {
		if errors.Is(r.Cause(), domain.ErrNotFound) {
			return nil, r.Cause()
		}
		return nil, &Refusal{Cause: r.Cause()}
	}

	next := r.Value()
	if err := s.store.SaveQueue(ctx, &next); err != nil {
		return nil, fmt.Errorf("save %s queue %s: %w", scope, key, err)
	}

	order := make([]string, len(next.Requests))
	for i := range next.Requests {
		order[i] = next.Requests[i].ID
	}
	publish(ctx, s.queue, messagequeue.SubjectQueueReordered, messagequeue.QueueReorderedPayload{
		Scope:   string(next.Scope),
		Key:     next.Key,
		Order:   order,
		Version: next.Version,
	})
	return &next, nil
}
