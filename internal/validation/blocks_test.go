package validation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/circulation/internal/domain"
	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/result"
)

type limitRecords struct {
	open  int
	limit int
}

func countingLimitRule(evaluated *int) Rule[limitRecords] {
	return RefuseAfter(ItemLimitIsReached,
		func(_ context.Context, r limitRecords) result.Result[bool] {
			*evaluated++
			return result.Bool(r.open >= r.limit)
		},
		func(r limitRecords) failure.Cause {
			return failure.ItemLimit{Scope: failure.ScopeMaterialType, Limit: r.limit}.Validation("b1")
		})
}

func runLimit(t *testing.T, g Gate, evaluated *int) Outcome[limitRecords] {
	t.Helper()
	acc := NewAccumulator(CheckOutProfile)
	p := NewPipeline[limitRecords](acc).
		Block(countingLimitRule(evaluated), override.BlockItemLimit, g)
	return p.Run(context.Background(), limitRecords{open: 3, limit: 3})
}

func TestOverrideGating(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	requested := override.Request{
		Blocks:  map[override.Block]bool{override.BlockItemLimit: true},
		Comment: "approved by supervisor",
	}

	t.Run("not requested runs the rule", func(t *testing.T) {
		var evaluated int
		out := runLimit(t, Gate{Capabilities: override.NewCapabilities(override.PermissionItemLimitBlock)}, &evaluated)
		if evaluated != 1 {
			t.Fatalf("rule evaluated %d times, want 1", evaluated)
		}
		errs := out.Result.Cause().ValidationErrors()
		if len(errs) != 1 || errs[0].Message != "Patron has reached maximum limit of 3 items for material type" {
			t.Fatalf("unexpected errors: %+v", errs)
		}
		if len(out.Overrides) != 0 {
			t.Fatalf("unexpected overrides: %+v", out.Overrides)
		}
	})

	t.Run("requested without permission is denied", func(t *testing.T) {
		var evaluated int
		acc := NewAccumulator(CheckOutProfile)
		out := NewPipeline[limitRecords](acc).
			Block(countingLimitRule(&evaluated), override.BlockItemLimit, Gate{Request: requested}).
			Run(context.Background(), limitRecords{open: 3, limit: 3})

		if evaluated != 0 {
			t.Fatalf("rule evaluated %d times, want 0", evaluated)
		}
		if !acc.HasAny(ItemLimitIsReached) {
			t.Fatal("denied override not recorded under the rule's category")
		}
		errs := out.Result.Cause().ValidationErrors()
		if len(errs) != 1 || errs[0].Message != failure.InsufficientOverridePermissions {
			t.Fatalf("unexpected errors: %+v", errs)
		}
		if errs[0].Message == "Patron has reached maximum limit of 3 items for material type" {
			t.Fatal("denied override reused the rule message")
		}
		if !errors.Is(out.Err(), domain.ErrValidation) {
			t.Fatalf("expected ErrValidation, got %v", out.Err())
		}
	})

	t.Run("requested with permission skips the rule", func(t *testing.T) {
		var evaluated int
		g := Gate{
			Request:      requested,
			Capabilities: override.NewCapabilities(override.PermissionItemLimitBlock),
			OperatorID:   "staff-1",
			Now:          func() time.Time { return at },
		}
		out := runLimit(t, g, &evaluated)
		if evaluated != 0 {
			t.Fatalf("rule evaluated %d times, want 0", evaluated)
		}
		if out.Result.Failed() {
			t.Fatalf("unexpected failure: %v", out.Result.Cause())
		}
		if len(out.Overrides) != 1 {
			t.Fatalf("expected one override marker, got %d", len(out.Overrides))
		}
		got := out.Overrides[0]
		if got.Block != override.BlockItemLimit || got.Permission != override.PermissionItemLimitBlock ||
			got.Operation != "check-out" || got.OperatorID != "staff-1" || !got.At.Equal(at) ||
			got.Comment != "approved by supervisor" {
			t.Errorf("unexpected marker: %+v", got)
		}
	})

	t.Run("other block permission does not help", func(t *testing.T) {
		var evaluated int
		g := Gate{Request: requested, Capabilities: override.NewCapabilities(override.PermissionPatronBlock)}
		out := runLimit(t, g, &evaluated)
		if evaluated != 0 {
			t.Fatalf("rule evaluated %d times, want 0", evaluated)
		}
		errs := out.Result.Cause().ValidationErrors()
		if len(errs) != 1 || errs[0].Code != "INSUFFICIENT_OVERRIDE_PERMISSIONS" {
			t.Fatalf("expected denied override, got %+v", errs)
		}
		if errs[0].Parameters[1].Value != override.PermissionItemLimitBlock {
			t.Errorf("missing permission = %q", errs[0].Parameters[1].Value)
		}
	})
}
