package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCallNilGuard(t *testing.T) {
	got, err := Call(context.Background(), nil, "items", func(context.Context) (int, error) { return 7, nil })
	if err != nil || got != 7 {
		t.Fatalf("expected 7, nil; got %d, %v", got, err)
	}
}

func TestCallReturnsValueAndError(t *testing.T) {
	g := NewGuard(NewPool(2), NewBreakers(3, time.Second), 0)

	got, err := Call(context.Background(), g, "items", func(context.Context) (string, error) { return "item", nil })
	if err != nil || got != "item" {
		t.Fatalf("expected item, nil; got %q, %v", got, err)
	}

	_, err = Call(context.Background(), g, "items", func(context.Context) (string, error) { return "", errTest })
	if !errors.Is(err, errTest) {
		t.Fatalf("expected errTest, got %v", err)
	}
}

func TestCallAppliesTimeout(t *testing.T) {
	g := NewGuard(nil, nil, 10*time.Millisecond)

	_, err := Call(context.Background(), g, "patrons", func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestCallBreakerPerCollaborator(t *testing.T) {
	g := NewGuard(nil, NewBreakers(1, time.Minute), 0)

	_, _ = Call(context.Background(), g, "policies", func(context.Context) (int, error) { return 0, errTest })

	called := false
	_, err := Call(context.Background(), g, "policies", func(context.Context) (int, error) {
		called = true
		return 1, nil
	})
	var open *OpenError
	if !errors.As(err, &open) || open.Name != "policies" {
		t.Fatalf("expected policies OpenError, got %v", err)
	}
	if called {
		t.Fatal("fn must not run while the breaker is open")
	}

	if _, err := Call(context.Background(), g, "items", func(context.Context) (int, error) { return 1, nil }); err != nil {
		t.Fatalf("items lookups should not share the policies breaker: %v", err)
	}
	if got := g.Breakers().Open(); len(got) != 1 || got[0] != "policies" {
		t.Errorf("open breakers = %v", got)
	}
}
