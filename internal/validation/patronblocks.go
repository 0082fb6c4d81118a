package validation

import (
	"context"
	"time"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/patron"
	"github.com/Strob0t/circulation/internal/domain/result"
	"github.com/Strob0t/circulation/internal/port/lookup"
)

// fetchBlocks loads automated and manual blocks for the patron concurrently.
func fetchBlocks[A any](
	l lookup.Set,
	acc *Accumulator,
	who func(A) *patron.Patron,
	setAutomated func(A, []patron.AutomatedBlock) A,
	setManual func(A, []patron.ManualBlock) A,
	skipIf ...Category,
) Step[A] {
	both := FetchBoth(acc,
		Fetching[A, []patron.AutomatedBlock]{
			Category: UserIsBlockedAutomatically,
			Lookup: func(a A) result.Task[[]patron.AutomatedBlock] {
				p := who(a)
				if p == nil || l.AutomatedBlocks == nil {
					return nil
				}
				id := p.ID
				return result.Lookup(func(ctx context.Context) ([]patron.AutomatedBlock, error) {
					return l.AutomatedBlocks.AutomatedBlocks(ctx, id)
				}, "patron block", id)
			},
			Set: setAutomated,
		},
		Fetching[A, []patron.ManualBlock]{
			Category: UserIsBlockedManually,
			Lookup: func(a A) result.Task[[]patron.ManualBlock] {
				p := who(a)
				if p == nil || l.ManualBlocks == nil {
					return nil
				}
				id := p.ID
				return result.Lookup(func(ctx context.Context) ([]patron.ManualBlock, error) {
					return l.ManualBlocks.ManualBlocks(ctx, id)
				}, "manual block", id)
			},
			Set: setManual,
		})
	return func(ctx context.Context, a A) result.Result[A] {
		if acc.HasAny(skipIf...) {
			return result.Succeeded(a)
		}
		return both(ctx, a)
	}
}

// AutomatedBlockRule refuses when an automated block restricts action. Each
// block message becomes its own error.
func AutomatedBlockRule[A any](action patron.Action, blocks func(A) []patron.AutomatedBlock) Rule[A] {
	return RefuseWhen(UserIsBlockedAutomatically,
		func(a A) bool { return len(patron.BlockMessages(blocks(a), action)) > 0 },
		func(a A) failure.Cause {
			msgs := patron.BlockMessages(blocks(a), action)
			v := make(failure.Validation, 0, len(msgs))
			for _, m := range msgs {
				v = append(v, failure.ValidationError{Message: m, Parameters: []failure.Parameter{}})
			}
			return v
		})
}

var manualBlockMessages = map[patron.Action]string{
	patron.ActionBorrowing:  "Patron blocked from borrowing",
	patron.ActionRenewing:   "Patron blocked from renewing",
	patron.ActionRequesting: "Patron blocked from requesting",
}

// ManualBlockRule refuses when an unexpired manual block restricts action.
func ManualBlockRule[A any](action patron.Action, blocks func(A) ([]patron.ManualBlock, time.Time)) Rule[A] {
	return RefuseWhen(UserIsBlockedManually,
		func(a A) bool {
			bs, now := blocks(a)
			return len(patron.ActiveManualBlocks(bs, action, now)) > 0
		},
		func(a A) failure.Cause {
			bs, now := blocks(a)
			return failure.Single(manualBlockMessages[action], "reason",
				patron.Reasons(patron.ActiveManualBlocks(bs, action, now)))
		})
}
