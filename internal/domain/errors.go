// Package domain holds the sentinel errors every circulation package
// classifies against.
package domain

import "errors"

var (
	// ErrNotFound marks a lookup for an item, patron, loan, request or
	// policy that has no record.
	ErrNotFound = errors.New("record not found")

	// ErrConflict marks a write against a loan, request or queue whose
	// stored version moved since it was read.
	ErrConflict = errors.New("record was changed by another operation")

	// ErrValidation marks input rejected before any rule ran.
	ErrValidation = errors.New("invalid input")
)
