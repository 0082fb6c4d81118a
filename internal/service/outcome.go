package service

import (
	"time"

	"github.com/Strob0t/circulation/internal/domain/failure"
	"github.com/Strob0t/circulation/internal/domain/override"
	"github.com/Strob0t/circulation/internal/domain/user"
	"github.com/Strob0t/circulation/internal/validation"
)

// Refusal is returned when an operation fails its circulation rules. It
// carries every recorded failure and the blocks a suitably permitted caller
// could override.
type Refusal struct {
	Cause             failure.Cause
	Categories        []validation.Category
	OverridableBlocks []override.Block
}

func (r *Refusal) Error() string { return r.Cause.Error() }

// Unwrap exposes the cause so errors.Is matches the domain sentinels.
func (r *Refusal) Unwrap() error { return r.Cause }

// Receipt is a committed change together with the overrides that permitted it.
type Receipt[T any] struct {
	Record    T
	Overrides []override.Applied
}

// refusal converts a failed pipeline outcome into the error returned to
// callers. Server errors pass through untouched.
func refusal[A any](out validation.Outcome[A]) error {
	if out.Result.Succeeded() {
		return nil
	}
	c := out.Result.Cause()
	if failure.IsServer(c) {
		return c
	}
	return &Refusal{Cause: c, Categories: out.Failed, OverridableBlocks: out.OverridableBlocks}
}

func gate(ov override.Request, op user.Operator, now func() time.Time) validation.Gate {
	return validation.Gate{
		Request:      ov,
		Capabilities: op.Permissions,
		OperatorID:   op.ID,
		Now:          now,
	}
}

func utcNow() time.Time { return time.Now().UTC() }
