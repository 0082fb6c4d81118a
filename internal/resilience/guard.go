package resilience

import (
	"context"
	"time"
)

// Guard applies a concurrency slot, a per-call timeout and the named
// collaborator's circuit breaker to lookups. A nil Guard runs calls directly.
type Guard struct {
	pool     *Pool
	breakers *Breakers
	timeout  time.Duration
}

// NewGuard builds a Guard. Either of pool or breakers may be nil; timeout <= 0 disables it.
func NewGuard(pool *Pool, breakers *Breakers, timeout time.Duration) *Guard {
	return &Guard{pool: pool, breakers: breakers, timeout: timeout}
}

// Breakers returns the guard's breaker set, or nil.
func (g *Guard) Breakers() *Breakers {
	if g == nil {
		return nil
	}
	return g.breakers
}

// Call runs fn against collaborator under g and returns its value.
func Call[T any](ctx context.Context, g *Guard, collaborator string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	if g == nil {
		return fn(ctx)
	}
	run := func() error {
		callCtx := ctx
		if g.timeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, g.timeout)
			defer cancel()
		}
		v, err := fn(callCtx)
		out = v
		return err
	}
	err := g.pool.Run(ctx, func() error {
		if g.breakers == nil {
			return run()
		}
		return g.breakers.For(collaborator).Execute(run)
	})
	return out, err
}
