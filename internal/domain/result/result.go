// Package result provides the success-or-failure container every circulation
// rule is built on, and a context-aware task wrapper for steps that call
// collaborators.
//
// Combinators never mutate their receiver. Once a Result has failed, every
// further Map, Next or FailWhen returns the same failure without invoking the
// supplied function.
package result

import (
	"github.com/Strob0t/circulation/internal/domain/failure"
)

// Result holds either a value or a failure cause.
type Result[T any] struct {
	value T
	cause failure.Cause
}

// Succeeded wraps v as a successful Result.
func Succeeded[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failed wraps c as a failed Result. A nil cause is treated as a server error
// so that a Result can never be both empty and failed.
func Failed[T any](c failure.Cause) Result[T] {
	if c == nil {
		c = failure.Server("failed without a cause", nil)
	}
	return Result[T]{cause: c}
}

// Of runs fn and turns a returned error into a ServerError unless it already is a Cause.
func Of[T any](fn func() (T, error)) Result[T] {
	v, err := fn()
	if err != nil {
		return Failed[T](failure.From(err, "record", ""))
	}
	return Succeeded(v)
}

// FromLookup converts a collaborator answer into a Result. domain.ErrNotFound
// becomes RecordNotFound{recordType, id}; other errors become ServerError.
func FromLookup[T any](v T, err error, recordType, id string) Result[T] {
	if err != nil {
		return Failed[T](failure.From(err, recordType, id))
	}
	return Succeeded(v)
}

// Succeeded reports whether r holds a value.
func (r Result[T]) Succeeded() bool { return r.cause == nil }

// Failed reports whether r holds a failure.
func (r Result[T]) Failed() bool { return r.cause != nil }

// Value returns the held value, or the zero value for a failed Result.
func (r Result[T]) Value() T { return r.value }

// Cause returns the failure cause, or nil for a successful Result.
func (r Result[T]) Cause() failure.Cause { return r.cause }

// Unwrap returns the Result as a Go (value, error) pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.cause != nil {
		var zero T
		return zero, r.cause
	}
	return r.value, nil
}

// FailWhen evaluates pred on a successful value and, when it yields true,
// replaces the Result with the failure built by onTrue. A failing predicate
// fails the Result with the predicate's own cause.
func (r Result[T]) FailWhen(pred func(T) Result[bool], onTrue func(T) failure.Cause) Result[T] {
	if r.Failed() {
		return r
	}
	p := pred(r.value)
	if p.Failed() {
		return Failed[T](p.cause)
	}
	if p.value {
		return Failed[T](onTrue(r.value))
	}
	return r
}

// MapFailure lets f recover from, or replace, a failure. Successful Results
// pass through untouched.
func (r Result[T]) MapFailure(f func(failure.Cause) Result[T]) Result[T] {
	if r.Succeeded() {
		return r
	}
	return f(r.cause)
}

// Map applies f to a successful value.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.Failed() {
		return Failed[U](r.cause)
	}
	return Succeeded(f(r.value))
}

// Next applies f to a successful value and returns f's Result.
func Next[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.Failed() {
		return Failed[U](r.cause)
	}
	return f(r.value)
}

// Combine joins two Results with f. The first failure, left to right, wins.
func Combine[A, B, C any](a Result[A], b Result[B], f func(A, B) C) Result[C] {
	if a.Failed() {
		return Failed[C](a.cause)
	}
	if b.Failed() {
		return Failed[C](b.cause)
	}
	return Succeeded(f(a.value, b.value))
}

// CombineAll collects the values of rs in order, or returns the first failure.
func CombineAll[T any](rs []Result[T]) Result[[]T] {
	out := make([]T, 0, len(rs))
	for _, r := range rs {
		if r.Failed() {
			return Failed[[]T](r.cause)
		}
		out = append(out, r.value)
	}
	return Succeeded(out)
}

// Bool is shorthand for a successful predicate outcome.
func Bool(b bool) Result[bool] { return Succeeded(b) }
