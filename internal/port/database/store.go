// Package database defines the write-side store port (interface).
package database

import (
	"context"

	"github.com/Strob0t/circulation/internal/domain/loan"
	"github.com/Strob0t/circulation/internal/domain/request"
)

// Store is the port interface for persisting circulation changes.
//
// Every queue write is conditional on the version the caller read. A queue
// that moved on since then yields domain.ErrConflict and nothing is written.
type Store interface {
	// Loans
	// CreateLoan stores l and marks its item checked out.
	CreateLoan(ctx context.Context, l *loan.Loan) error
	// UpdateLoan writes l when its stored version still equals l.Version and
	// bumps the version.
	UpdateLoan(ctx context.Context, l *loan.Loan) error

	// Requests
	// CreateRequest stores r and saves q, which already holds r.
	CreateRequest(ctx context.Context, r *request.Request, q *request.Queue) error
	// MoveRequest stores r in to and saves both queues. from and to may be
	// the same queue when a title-level request changes item.
	MoveRequest(ctx context.Context, r *request.Request, from, to *request.Queue) error

	// Queues
	SaveQueue(ctx context.Context, q *request.Queue) error
}
