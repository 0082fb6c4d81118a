package validation

import (
	"context"
	"errors"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// find wraps a pointer-returning collaborator call as a Task.
func find[T any](fn func(context.Context) (*T, error), recordType, id string) result.Task[*T] {
	return result.Lookup(fn, recordType, id)
}

// orNotFound replaces a RecordNotFound failure with the cause built by
// notFound. Other failures pass through.
func orNotFound[T any](t result.Task[T], notFound func() failure.Cause) result.Task[T] {
	return func(ctx context.Context) result.Result[T] {
		return t.Run(ctx).MapFailure(func(c failure.Cause) result.Result[T] {
			if errors.Is(c, domain.ErrNotFound) {
				return result.Failed[T](notFound())
			}
			return result.Failed[T](c)
		})
	}
}

// optional turns a RecordNotFound failure into a nil success.
func optional[T any](t result.Task[*T]) result.Task[*T] {
	return func(ctx context.Context) result.Result[*T] {
		return t.Run(ctx).MapFailure(func(c failure.Cause) result.Result[*T] {
			if errors.Is(c, domain.ErrNotFound) {
				return result.Succeeded[*T](nil)
			}
			return result.Failed[*T](c)
		})
	}
}
