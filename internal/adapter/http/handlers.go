package http

import (
	"context"
	"net/http"

	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/request"
	"github.com/Strob0t/circulation/internal/domain/user"
	"github.com/Strob0t/circulation/internal/middleware"
	"github.com/Strob0t/circulation/internal/service"
)

// CheckOuter runs the check-out operation.
type CheckOuter interface {
	CheckOut(ctx context.Context, req loan.CheckOutRequest, ov override.Request, op user.Operator) (*service.Receipt[*loan.Loan], error)
}

// Renewer runs the renewal operation.
type Renewer interface {
	Renew(ctx context.Context, req loan.RenewRequest, ov override.Request, op user.Operator) (*service.Receipt[*loan.Loan], error)
}

// Requester places and moves requests.
type Requester interface {
	Create(ctx context.Context, req request.CreateRequest, ov override.Request, op user.Operator) (*service.Receipt[*request.Request], error)
	Move(ctx context.Context, id string, m request.MoveRequest) (*service.Receipt[*request.Request], error)
}

// Queues reads and reorders request queues.
type Queues interface {
	Get(ctx context.Context, scope request.Scope, key string) (*request.Queue, error)
	Reorder(ctx context.Context, scope request.Scope, key string, sub request.ReorderSubmission) (*request.Queue, error)
}

// Handlers holds the circulation operations served over HTTP.
type Handlers struct {
	CheckOut CheckOuter
	Renewal  Renewer
	Requests Requester
	Queues   Queues
}

type receiptResponse[T any] struct {
	Record    T                  `json:"record"`
	Overrides []override.Applied `json:"overrides,omitempty"`
}

func respondReceipt[T any](w http.ResponseWriter, status int, rc *service.Receipt[T]) {
	writeJSON(w, status, receiptResponse[T]{Record: rc.Record, Overrides: rc.Overrides})
}

type queueResponse struct {
	Scope        request.Scope     `json:"scope"`
	Key          string            `json:"key"`
	Version      int64             `json:"version"`
	Requests     []request.Request `json:"requests"`
	TotalRecords int               `json:"totalRecords"`
}

func newQueueResponse(q *request.Queue) queueResponse {
	reqs := q.Sorted()
	if reqs == nil {
		reqs = []request.Request{}
	}
	return queueResponse{
		Scope:        q.Scope,
		Key:          q.Key,
		Version:      q.Version,
		Requests:     reqs,
		TotalRecords: len(reqs),
	}
}

// CheckOutByBarcode handles POST /circulation/check-out-by-barcode
func (h *Handlers) CheckOutByBarcode(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, checkOutSchema)
	if !ok {
		return
	}
	req, err := body.toDomain()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	ov, err := body.OverrideBlocks.overrides()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rc, err := h.CheckOut.CheckOut(r.Context(), req, ov, middleware.OperatorFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusCreated, rc)
}

// RenewByBarcode handles POST /circulation/renew-by-barcode
func (h *Handlers) RenewByBarcode(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, renewSchema)
	if !ok {
		return
	}
	ov, err := body.OverrideBlocks.overrides()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rc, err := h.Renewal.Renew(r.Context(), body.toDomain(), ov, middleware.OperatorFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusOK, rc)
}

// CreateRequest handles POST /circulation/requests
func (h *Handlers) CreateRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, createRequestSchema)
	if !ok {
		return
	}
	ov, err := body.OverrideBlocks.overrides()
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	rc, err := h.Requests.Create(r.Context(), body.toDomain(), ov, middleware.OperatorFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusCreated, rc)
}

// MoveRequest handles POST /circulation/requests/{id}/move
func (h *Handlers) MoveRequest(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r, moveSchema)
	if !ok {
		return
	}
	rc, err := h.Requests.Move(r.Context(), urlParam(r, "id"), body.toDomain())
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	respondReceipt(w, http.StatusOK, rc)
}

// GetQueue returns a handler for GET /circulation/requests/queue/{scope}/{key}
func (h *Handlers) GetQueue(scope request.Scope, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := h.Queues.Get(r.Context(), scope, urlParam(r, param))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newQueueResponse(q))
	}
}

// ReorderQueue returns a handler for POST /circulation/requests/queue/{scope}/{key}/reorder
func (h *Handlers) ReorderQueue(scope request.Scope, param string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sub, ok := readBody(w, r, reorderSchema)
		if !ok {
			return
		}
		q, err := h.Queues.Reorder(r.Context(), scope, urlParam(r, param), sub)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, newQueueResponse(q))
	}
}
