package result

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/failure"
)

var errRule = failure.Single("Item is already checked out", "itemBarcode", "036000291452")

func TestFailurePropagatesUnchanged(t *testing.T) {
	failed := Failed[int](errRule)
	calls := 0

	mapped := Map(failed, func(v int) int { calls++; return v + 1 })
	chained := Next(mapped, func(v int) Result[string] { calls++; return Succeeded(fmt.Sprint(v)) })
	guarded := chained.FailWhen(
		func(string) Result[bool] { calls++; return Bool(true) },
		func(string) failure.Cause { calls++; return failure.Single("other", "k", "v") },
	)

	if calls != 0 {
		t.Fatalf("expected no combinator functions invoked, got %d", calls)
	}
	if !guarded.Failed() {
		t.Fatal("expected failure")
	}
	v, ok := guarded.Cause().(failure.Validation)
	if !ok || v[0].Message != "Item is already checked out" {
		t.Fatalf("expected original cause, got %v", guarded.Cause())
	}
}

func TestMapAndNext(t *testing.T) {
	r := Next(Map(Succeeded(2), func(v int) int { return v * 3 }), func(v int) Result[string] {
		return Succeeded(fmt.Sprintf("n=%d", v))
	})
	got, err := r.Unwrap()
	if err != nil || got != "n=6" {
		t.Fatalf("expected n=6, got %q, %v", got, err)
	}
}

func TestFailWhen(t *testing.T) {
	tests := []struct {
		name     string
		pred     Result[bool]
		wantFail bool
		wantMsg  string
	}{
		{"predicate false passes", Bool(false), false, ""},
		{"predicate true fails", Bool(true), true, "refused"},
		{"predicate failure propagates", Failed[bool](failure.NotFound("Item", "1")), true, `Item record with ID "1" cannot be found`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Succeeded("loan").FailWhen(
				func(string) Result[bool] { return tt.pred },
				func(string) failure.Cause { return failure.Single("refused", "k", "v") },
			)
			if r.Failed() != tt.wantFail {
				t.Fatalf("Failed() = %v, want %v", r.Failed(), tt.wantFail)
			}
			if tt.wantFail && r.Cause().ValidationErrors()[0].Message != tt.wantMsg {
				t.Errorf("message = %q, want %q", r.Cause().ValidationErrors()[0].Message, tt.wantMsg)
			}
			if !tt.wantFail && r.Value() != "loan" {
				t.Errorf("value = %q, want loan", r.Value())
			}
		})
	}
}

func TestCombineLeftFailureWins(t *testing.T) {
	left := failure.Single("left", "k", "v")
	right := failure.Single("right", "k", "v")
	join := func(a, b int) int { return a + b }

	if got := Combine(Succeeded(1), Succeeded(2), join); got.Value() != 3 {
		t.Errorf("expected 3, got %d", got.Value())
	}
	r := Combine(Failed[int](left), Failed[int](right), join)
	if r.Cause().ValidationErrors()[0].Message != "left" {
		t.Errorf("expected left failure, got %v", r.Cause())
	}
	r = Combine(Succeeded(1), Failed[int](right), join)
	if r.Cause().ValidationErrors()[0].Message != "right" {
		t.Errorf("expected right failure, got %v", r.Cause())
	}
}

func TestCombineAll(t *testing.T) {
	r := CombineAll([]Result[int]{Succeeded(1), Succeeded(2), Succeeded(3)})
	if got := r.Value(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("unexpected %v", got)
	}
	r = CombineAll([]Result[int]{Succeeded(1), Failed[int](errRule), Succeeded(3)})
	if !r.Failed() {
		t.Fatal("expected failure")
	}
}

func TestFromLookup(t *testing.T) {
	r := FromLookup("", fmt.Errorf("item: %w", domain.ErrNotFound), "Item", "7")
	if !errors.Is(r.Cause(), domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", r.Cause())
	}
	r = FromLookup("", errors.New("timeout"), "Item", "7")
	if !failure.IsServer(r.Cause()) {
		t.Errorf("expected server error, got %v", r.Cause())
	}
	if r := FromLookup("x", nil, "Item", "7"); r.Value() != "x" {
		t.Errorf("expected value x, got %q", r.Value())
	}
}

func TestFailedNilCause(t *testing.T) {
	r := Failed[int](nil)
	if !r.Failed() || !failure.IsServer(r.Cause()) {
		t.Fatalf("nil cause must still fail, got %v", r.Cause())
	}
}

func TestMapFailure(t *testing.T) {
	recovered := Failed[int](errRule).MapFailure(func(failure.Cause) Result[int] { return Succeeded(9) })
	if recovered.Value() != 9 {
		t.Errorf("expected recovery to 9, got %d", recovered.Value())
	}
	untouched := Succeeded(1).MapFailure(func(failure.Cause) Result[int] { return Succeeded(9) })
	if untouched.Value() != 1 {
		t.Errorf("success must pass through, got %d", untouched.Value())
	}
}

func TestTaskSequencing(t *testing.T) {
	var order []string
	first := Task[int](func(context.Context) Result[int] {
		order = append(order, "first")
		return Succeeded(1)
	})
	second := After(first, func(_ context.Context, v int) Result[int] {
		order = append(order, "second")
		return Succeeded(v + 1)
	})
	third := MapTask(second, func(v int) string {
		order = append(order, "third")
		return fmt.Sprint(v)
	})

	got := third.Run(context.Background())
	if got.Value() != "2" {
		t.Fatalf("expected 2, got %q", got.Value())
	}
	if fmt.Sprint(order) != "[first second third]" {
		t.Errorf("unexpected order %v", order)
	}
}

func TestTaskFailureStopsChain(t *testing.T) {
	ran := false
	task := After(Lift(Failed[int](errRule)), func(context.Context, int) Result[int] {
		ran = true
		return Succeeded(1)
	})
	if r := task.Run(context.Background()); !r.Failed() || ran {
		t.Fatalf("expected failure without running dependent step, ran=%v", ran)
	}
}

func TestFailAfter(t *testing.T) {
	task := FailAfter(Lift(Succeeded("loan")),
		func(context.Context, string) Result[bool] { return Bool(true) },
		func(string) failure.Cause { return failure.Single("loan is not renewable", "loanPolicyName", "p") })
	r := task.Run(context.Background())
	if !r.Failed() || r.Cause().ValidationErrors()[0].Message != "loan is not renewable" {
		t.Fatalf("unexpected %v", r.Cause())
	}
}

func TestBothRunsConcurrently(t *testing.T) {
	var inFlight, maxSeen atomic.Int32
	slow := func(v int) Task[int] {
		return func(context.Context) Result[int] {
			cur := inFlight.Add(1)
			for {
				old := maxSeen.Load()
				if cur <= old || maxSeen.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return Succeeded(v)
		}
	}

	r := Both(slow(1), slow(2), func(a, b int) int { return a*10 + b }).Run(context.Background())
	if r.Value() != 12 {
		t.Fatalf("expected 12, got %d", r.Value())
	}
	if maxSeen.Load() != 2 {
		t.Errorf("expected both lookups in flight together, max=%d", maxSeen.Load())
	}
}

func TestBothDoesNotCancelSibling(t *testing.T) {
	var siblingFinished atomic.Bool
	failing := Lift(Failed[int](errRule))
	sibling := Task[int](func(ctx context.Context) Result[int] {
		time.Sleep(10 * time.Millisecond)
		if ctx.Err() == nil {
			siblingFinished.Store(true)
		}
		return Succeeded(1)
	})

	r := Both(failing, sibling, func(a, b int) int { return a + b }).Run(context.Background())
	if !r.Failed() {
		t.Fatal("expected failure")
	}
	if !siblingFinished.Load() {
		t.Error("sibling branch should complete with a live context")
	}
}

func TestAllPreservesOrder(t *testing.T) {
	tasks := make([]Task[int], 5)
	for i := range tasks {
		delay := time.Duration(5-i) * time.Millisecond
		tasks[i] = func(context.Context) Result[int] {
			time.Sleep(delay)
			return Succeeded(i)
		}
	}
	got := All(2, tasks...).Run(context.Background()).Value()
	if fmt.Sprint(got) != "[0 1 2 3 4]" {
		t.Errorf("unexpected order %v", got)
	}
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	r := Task[int](func(context.Context) Result[int] { ran = true; return Succeeded(1) }).Run(ctx)
	if ran || !errors.Is(r.Cause(), context.Canceled) {
		t.Fatalf("expected cancellation failure without running, ran=%v cause=%v", ran, r.Cause())
	}
}
