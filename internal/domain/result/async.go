package result

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/Strob0t/circulation/internal/domain/failure"
)

// Task is a step that may wait on a collaborator before producing a Result.
// Tasks run only when invoked, and each combinator waits for its predecessor.
type Task[T any] func(ctx context.Context) Result[T]

// Run executes t. A nil Task yields a server failure.
func (t Task[T]) Run(ctx context.Context) Result[T] {
	if t == nil {
		return Failed[T](nil)
	}
	if err := ctx.Err(); err != nil {
		return Failed[T](failure.Server("operation cancelled", err))
	}
	return t(ctx)
}

// Lift turns an already computed Result into a Task.
func Lift[T any](r Result[T]) Task[T] {
	return func(context.Context) Result[T] { return r }
}

// Lookup wraps a collaborator call; see FromLookup for error mapping.
func Lookup[T any](fn func(context.Context) (T, error), recordType, id string) Task[T] {
	return func(ctx context.Context) Result[T] {
		v, err := fn(ctx)
		return FromLookup(v, err, recordType, id)
	}
}

// After runs f on the value of t once t has succeeded.
func After[T, U any](t Task[T], f func(context.Context, T) Result[U]) Task[U] {
	return func(ctx context.Context) Result[U] {
		r := t.Run(ctx)
		if r.Failed() {
			return Failed[U](r.cause)
		}
		return f(ctx, r.value)
	}
}

// MapTask applies f to the value of t once t has succeeded. It completes the
// combinator set for callers outside the validation pipelines, which map
// values through Fetching.Set instead.
func MapTask[T, U any](t Task[T], f func(T) U) Task[U] {
	return func(ctx context.Context) Result[U] {
		return Map(t.Run(ctx), f)
	}
}

// FailAfter is FailWhen for a predicate that needs a collaborator. Rule.Check
// is built on it.
func FailAfter[T any](t Task[T], pred func(context.Context, T) Result[bool], onTrue func(T) failure.Cause) Task[T] {
	return func(ctx context.Context) Result[T] {
		r := t.Run(ctx)
		return r.FailWhen(func(v T) Result[bool] { return pred(ctx, v) }, onTrue)
	}
}

// Both runs a and b concurrently and joins them with f once both finish.
// Neither branch is cancelled when the other fails; the left failure wins.
func Both[A, B, C any](a Task[A], b Task[B], f func(A, B) C) Task[C] {
	return func(ctx context.Context) Result[C] {
		var (
			ra Result[A]
			rb Result[B]
			g  errgroup.Group
		)
		g.Go(func() error { ra = a.Run(ctx); return nil })
		g.Go(func() error { rb = b.Run(ctx); return nil })
		_ = g.Wait()
		return Combine(ra, rb, f)
	}
}

// All runs tasks concurrently, at most limit at a time (limit <= 0 means
// unbounded), and returns their values in input order or the first failure
// in input order. It is the n-ary form of Both; no pipeline step fans out
// beyond two lookups today.
func All[T any](limit int, tasks ...Task[T]) Task[[]T] {
	return func(ctx context.Context) Result[[]T] {
		results := make([]Result[T], len(tasks))
		var g errgroup.Group
		if limit > 0 {
			g.SetLimit(limit)
		}
		for i, t := range tasks {
			g.Go(func() error {
				results[i] = t.Run(ctx)
				return nil
			})
		}
		_ = g.Wait()
		return CombineAll(results)
	}
}
