package validation

import (
	"context"
	"time"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// Validator checks an aggregate and returns it unchanged on success.
type Validator[A any] func(ctx context.Context, a A) result.Result[A]

// Gate carries the caller's override intent and capabilities for one operation.
type Gate struct {
	Request      override.Request
	Capabilities override.Capabilities
	OperatorID   string
	Now          func() time.Time
}

func (g Gate) now() time.Time {
	if g.Now != nil {
		return g.Now()
	}
	return time.Now().UTC()
}

// Standard runs the rule as is.
func Standard[A any](r Rule[A]) Validator[A] {
	return r.Check
}

// Overriding never evaluates the rule. With the permission for block it
// marks the override on acc and passes; without it it fails with
// OverrideDenied.
func Overriding[A any](block override.Block, g Gate, acc *Accumulator) Validator[A] {
	perm := block.Permission()
	return func(_ context.Context, a A) result.Result[A] {
		if !g.Capabilities.Has(perm) {
			return result.Failed[A](&failure.OverrideDenied{Block: string(block), Permission: perm})
		}
		acc.MarkOverride(override.Applied{
			Block:      block,
			Permission: perm,
			Comment:    g.Request.Comment,
			OperatorID: g.OperatorID,
			At:         g.now(),
		})
		return result.Succeeded(a)
	}
}

// ForBlock picks the variant for block once, when the pipeline is built.
func ForBlock[A any](r Rule[A], block override.Block, g Gate, acc *Accumulator) Validator[A] {
	if g.Request.Requested(block) {
		return Overriding[A](block, g, acc)
	}
	return Standard(r)
}
