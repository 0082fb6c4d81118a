package validation

import (
	"context"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// Rule refuses an aggregate when its condition holds. Rules hold no state and
// never touch the accumulator.
type Rule[A any] struct {
	Category Category
	When     func(ctx context.Context, a A) result.Result[bool]
	Fail     func(a A) failure.Cause
}

// RefuseWhen builds a Rule from a plain condition.
func RefuseWhen[A any](cat Category, cond func(A) bool, fail func(A) failure.Cause) Rule[A] {
	return Rule[A]{
		Category: cat,
		When:     func(_ context.Context, a A) result.Result[bool] { return result.Bool(cond(a)) },
		Fail:     fail,
	}
}

// RefuseAfter builds a Rule whose condition consults a collaborator.
func RefuseAfter[A any](cat Category, cond func(context.Context, A) result.Result[bool], fail func(A) failure.Cause) Rule[A] {
	return Rule[A]{Category: cat, When: cond, Fail: fail}
}

// Check evaluates the rule against a. A cancelled ctx fails the check
// before the condition runs.
func (r Rule[A]) Check(ctx context.Context, a A) result.Result[A] {
	return result.FailAfter(result.Lift(result.Succeeded(a)), r.When, r.Fail).Run(ctx)
}

// Message returns a failure builder for a single-parameter validation error.
func Message[A any](message, key string, value func(A) string) func(A) failure.Cause {
	return func(a A) failure.Cause {
		return failure.Single(message, key, value(a))
	}
}
