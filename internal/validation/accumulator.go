package validation

import (
	"errors"
	"sync"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/result"
)

// ErrFinalized is returned when a failure is recorded after Finalize.
var ErrFinalized = errors.New("validation: accumulator already finalized")

// Accumulator collects categorized failures for one operation. It is created
// per operation and never shared between callers.
type Accumulator struct {
	mu        sync.Mutex
	profile   Profile
	order     []Category
	causes    map[Category]failure.Cause
	applied   []override.Applied
	finalized bool
}

// NewAccumulator returns an empty Accumulator for the given profile.
func NewAccumulator(p Profile) *Accumulator {
	return &Accumulator{
		profile: p,
		causes:  make(map[Category]failure.Cause),
	}
}

// Profile returns the profile the accumulator was built with.
func (a *Accumulator) Profile() Profile { return a.profile }

// HasAny reports whether a failure is held for any of cats.
func (a *Accumulator) HasAny(cats ...Category) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range cats {
		if _, ok := a.causes[c]; ok {
			return true
		}
	}
	return false
}

// Record stores cause under cat. A second failure for the same category
// replaces the first but keeps its original position.
func (a *Accumulator) Record(cat Category, cause failure.Cause) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.finalized {
		return ErrFinalized
	}
	if _, ok := a.causes[cat]; !ok {
		a.order = append(a.order, cat)
	}
	a.causes[cat] = cause
	return nil
}

// Categories returns the failed categories in first-recorded order.
func (a *Accumulator) Categories() []Category {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Category(nil), a.order...)
}

// MarkOverride records an override that let a rule pass unevaluated. A
// block is recorded once per operation however many rules it bypassed.
func (a *Accumulator) MarkOverride(ap override.Applied) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, prev := range a.applied {
		if prev.Block == ap.Block {
			return
		}
	}
	if ap.Operation == "" {
		ap.Operation = a.profile.Operation
	}
	a.applied = append(a.applied, ap)
}

// Overrides returns the applied overrides in the order they happened.
func (a *Accumulator) Overrides() []override.Applied {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]override.Applied(nil), a.applied...)
}

// OverridableBlocks lists the blocks that could bypass the recorded failures,
// without duplicates, in first-recorded order.
func (a *Accumulator) OverridableBlocks() []override.Block {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []override.Block
	seen := make(map[override.Block]bool)
	for _, c := range a.order {
		b, ok := a.profile.BlockFor(c)
		if !ok || seen[b] {
			continue
		}
		seen[b] = true
		out = append(out, b)
	}
	return out
}

// Finalize closes the accumulator. With nothing recorded it succeeds;
// otherwise it fails with one Validation holding every recorded error in
// first-recorded order.
func (a *Accumulator) Finalize() result.Result[struct{}] {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.finalized = true
	if len(a.order) == 0 {
		return result.Succeeded(struct{}{})
	}
	var all failure.Validation
	for _, c := range a.order {
		all = append(all, a.causes[c].ValidationErrors()...)
	}
	return result.Failed[struct{}](all)
}

// Handle folds r into the accumulator. A validation failure is recorded under
// cat and, unless cat is fatal for the operation, replaced by a success
// holding ctxValue so the pipeline continues. Server errors are never
// recorded and always propagate.
func Handle[T any](a *Accumulator, r result.Result[T], cat Category, ctxValue T) result.Result[T] {
	if r.Succeeded() {
		return r
	}
	cause := r.Cause()
	if failure.IsServer(cause) {
		return r
	}
	if err := a.Record(cat, cause); err != nil {
		return result.Failed[T](failure.Server("record "+string(cat), err))
	}
	if a.profile.IsFatal(cat) {
		return r
	}
	return result.Succeeded(ctxValue)
}
