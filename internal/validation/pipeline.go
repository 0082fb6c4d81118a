package validation

import (
	"context"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// Step advances an aggregate through one stage of an operation.
type Step[A any] func(ctx context.Context, a A) result.Result[A]

// Observer is told about recorded failures and applied overrides once a
// pipeline finishes.
type Observer interface {
	Failed(ctx context.Context, operation string, cat Category, cause failure.Cause)
	Overridden(ctx context.Context, applied override.Applied)
}

type nopObserver struct{}

func (nopObserver) Failed(context.Context, string, Category, failure.Cause) {}
func (nopObserver) Overridden(context.Context, override.Applied)            {}

// Outcome is the finalized result of a pipeline run.
type Outcome[A any] struct {
	Aggregate         A
	Result            result.Result[struct{}]
	Failed            []Category
	Overrides         []override.Applied
	OverridableBlocks []override.Block
}

// Err returns the failure cause, or nil.
func (o Outcome[A]) Err() error {
	if o.Result.Failed() {
		return o.Result.Cause()
	}
	return nil
}

// Pipeline composes the steps of one operation. It is built per operation
// around that operation's Accumulator.
type Pipeline[A any] struct {
	acc      *Accumulator
	steps    []Step[A]
	observer Observer
}

// NewPipeline starts an empty pipeline that records into acc.
func NewPipeline[A any](acc *Accumulator) *Pipeline[A] {
	return &Pipeline[A]{acc: acc, observer: nopObserver{}}
}

// Accumulator returns the accumulator the pipeline records into.
func (p *Pipeline[A]) Accumulator() *Accumulator { return p.acc }

// Observe sets the observer notified after Run.
func (p *Pipeline[A]) Observe(o Observer) *Pipeline[A] {
	if o != nil {
		p.observer = o
	}
	return p
}

// Then appends a raw step.
func (p *Pipeline[A]) Then(s Step[A]) *Pipeline[A] {
	p.steps = append(p.steps, s)
	return p
}

// Check appends v under cat. The step is skipped when any of skipIf has
// already failed.
func (p *Pipeline[A]) Check(v Validator[A], cat Category, skipIf ...Category) *Pipeline[A] {
	acc := p.acc
	return p.Then(func(ctx context.Context, a A) result.Result[A] {
		if acc.HasAny(skipIf...) {
			return result.Succeeded(a)
		}
		return Handle(acc, v(ctx, a), cat, a)
	})
}

// Refuse appends a plain rule.
func (p *Pipeline[A]) Refuse(r Rule[A], skipIf ...Category) *Pipeline[A] {
	return p.Check(Standard(r), r.Category, skipIf...)
}

// Block appends a rule that block may override.
func (p *Pipeline[A]) Block(r Rule[A], block override.Block, g Gate, skipIf ...Category) *Pipeline[A] {
	return p.Check(ForBlock(r, block, g, p.acc), r.Category, skipIf...)
}

// Run executes the steps in order and finalizes the accumulator. A step
// failure stops the run; server errors surface as is.
func (p *Pipeline[A]) Run(ctx context.Context, a A) Outcome[A] {
	cur := a
	var stop failure.Cause
	for _, s := range p.steps {
		r := s(ctx, cur)
		if r.Failed() {
			stop = r.Cause()
			break
		}
		cur = r.Value()
	}

	out := Outcome[A]{
		Aggregate:         cur,
		Result:            p.acc.Finalize(),
		Failed:            p.acc.Categories(),
		Overrides:         p.acc.Overrides(),
		OverridableBlocks: p.acc.OverridableBlocks(),
	}
	switch {
	case stop != nil && failure.IsServer(stop):
		out.Result = result.Failed[struct{}](stop)
	case stop != nil && out.Result.Succeeded():
		out.Result = result.Failed[struct{}](stop)
	}
	p.notify(ctx)
	return out
}

func (p *Pipeline[A]) notify(ctx context.Context) {
	p.acc.mu.Lock()
	order := append([]Category(nil), p.acc.order...)
	causes := make(map[Category]failure.Cause, len(p.acc.causes))
	for k, v := range p.acc.causes {
		causes[k] = v
	}
	applied := append([]override.Applied(nil), p.acc.applied...)
	p.acc.mu.Unlock()

	for _, c := range order {
		p.observer.Failed(ctx, p.acc.profile.Operation, c, causes[c])
	}
	for _, ap := range applied {
		p.observer.Overridden(ctx, ap)
	}
}

// Fetching describes a lookup whose value is stored into the aggregate.
type Fetching[A, T any] struct {
	Category Category
	// Lookup returns the task to run, or nil when there is nothing to fetch.
	Lookup func(A) result.Task[T]
	Set    func(A, T) A
	SkipIf []Category
}

func (f Fetching[A, T]) task(a A) result.Task[result.Result[T]] {
	t := f.Lookup(a)
	if t == nil {
		return nil
	}
	return func(ctx context.Context) result.Result[result.Result[T]] {
		return result.Succeeded(t.Run(ctx))
	}
}

func (f Fetching[A, T]) settle(acc *Accumulator, a A, r result.Result[T]) result.Result[A] {
	if r.Failed() {
		return Handle(acc, result.Failed[A](r.Cause()), f.Category, a)
	}
	return result.Succeeded(f.Set(a, r.Value()))
}

// Fetch runs one lookup. A failed lookup is recorded under its category.
func Fetch[A, T any](acc *Accumulator, f Fetching[A, T]) Step[A] {
	return func(ctx context.Context, a A) result.Result[A] {
		if acc.HasAny(f.SkipIf...) {
			return result.Succeeded(a)
		}
		t := f.task(a)
		if t == nil {
			return result.Succeeded(a)
		}
		r := t.Run(ctx)
		if r.Failed() {
			return result.Failed[A](r.Cause())
		}
		return f.settle(acc, a, r.Value())
	}
}

type settled[L, R any] struct {
	left  result.Result[L]
	right result.Result[R]
}

// FetchBoth runs two independent lookups concurrently. Each failure is
// recorded under its own category, left first.
func FetchBoth[A, L, R any](acc *Accumulator, left Fetching[A, L], right Fetching[A, R]) Step[A] {
	return func(ctx context.Context, a A) result.Result[A] {
		var lt result.Task[result.Result[L]]
		var rt result.Task[result.Result[R]]
		if !acc.HasAny(left.SkipIf...) {
			lt = left.task(a)
		}
		if !acc.HasAny(right.SkipIf...) {
			rt = right.task(a)
		}
		hasLeft, hasRight := lt != nil, rt != nil
		if !hasLeft {
			lt = result.Lift(result.Succeeded(result.Succeeded(*new(L))))
		}
		if !hasRight {
			rt = result.Lift(result.Succeeded(result.Succeeded(*new(R))))
		}
		both := result.Both(lt, rt, func(l result.Result[L], r result.Result[R]) settled[L, R] {
			return settled[L, R]{left: l, right: r}
		}).Run(ctx)
		if both.Failed() {
			return result.Failed[A](both.Cause())
		}

		cur := result.Succeeded(a)
		if hasLeft {
			cur = result.Next(cur, func(v A) result.Result[A] { return left.settle(acc, v, both.Value().left) })
		}
		if hasRight {
			cur = result.Next(cur, func(v A) result.Result[A] { return right.settle(acc, v, both.Value().right) })
		}
		return cur
	}
}
