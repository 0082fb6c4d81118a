// Package failure defines the typed causes carried by a failed circulation result.
package failure

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Strob0t/circulation/internal/domain"
)

// Parameter is a named value attached to a validation error.
type Parameter struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Param builds a Parameter.
func Param(key, value string) Parameter {
	return Parameter{Key: key, Value: value}
}

// ValidationError is one business-rule or input violation.
type ValidationError struct {
	Message    string      `json:"message"`
	Parameters []Parameter `json:"parameters"`
	Code       string      `json:"code,omitempty"`
}

// Cause is the failure side of a Result.
type Cause interface {
	error
	// ValidationErrors returns the client-facing errors for the cause.
	// It is empty for faults that are not reported as validation errors.
	ValidationErrors() []ValidationError
}

// Validation is a failure made of one or more validation errors.
type Validation []ValidationError

// Single returns a Validation with one error and one parameter.
func Single(message, key, value string) Validation {
	return Validation{{Message: message, Parameters: []Parameter{Param(key, value)}}}
}

// WithCode returns a Validation with one error carrying a stable code.
func WithCode(code, message string, params ...Parameter) Validation {
	return Validation{{Message: message, Parameters: params, Code: code}}
}

func (v Validation) Error() string {
	msgs := make([]string, 0, len(v))
	for _, e := range v {
		msgs = append(msgs, e.Message)
	}
	return "validation: " + strings.Join(msgs, "; ")
}

// ValidationErrors implements Cause.
func (v Validation) ValidationErrors() []ValidationError { return v }

// Is reports validation failures as domain.ErrValidation.
func (v Validation) Is(target error) bool { return target == domain.ErrValidation }

// HasMessage reports whether any error in v carries the message.
func (v Validation) HasMessage(message string) bool {
	for _, e := range v {
		if e.Message == message {
			return true
		}
	}
	return false
}

// RecordNotFound means a collaborator has no record with the given ID.
type RecordNotFound struct {
	RecordType string
	ID         string
}

// NotFound builds a RecordNotFound cause.
func NotFound(recordType, id string) *RecordNotFound {
	return &RecordNotFound{RecordType: recordType, ID: id}
}

func (e *RecordNotFound) Error() string {
	return fmt.Sprintf("%s record with ID %q cannot be found", e.RecordType, e.ID)
}

// ValidationErrors implements Cause.
func (e *RecordNotFound) ValidationErrors() []ValidationError {
	return []ValidationError{{
		Message:    e.Error(),
		Parameters: []Parameter{Param("id", e.ID)},
	}}
}

// Is reports missing records as domain.ErrNotFound.
func (e *RecordNotFound) Is(target error) bool { return target == domain.ErrNotFound }

// ServerError is an unexpected collaborator or internal fault.
type ServerError struct {
	Message string
	Err     error
}

// Server wraps err as a ServerError.
func Server(message string, err error) *ServerError {
	return &ServerError{Message: message, Err: err}
}

func (e *ServerError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *ServerError) Unwrap() error { return e.Err }

// ValidationErrors implements Cause. Server errors are never folded into a
// validation response.
func (e *ServerError) ValidationErrors() []ValidationError { return nil }

// InsufficientOverridePermissions is the message of an OverrideDenied error.
const InsufficientOverridePermissions = "Insufficient override permissions"

// OverrideDenied means an override was requested without the matching permission.
type OverrideDenied struct {
	Block      string
	Permission string
}

func (e *OverrideDenied) Error() string {
	return fmt.Sprintf("override of %s denied: missing permission %s", e.Block, e.Permission)
}

// ValidationErrors implements Cause.
func (e *OverrideDenied) ValidationErrors() []ValidationError {
	return []ValidationError{{
		Message: InsufficientOverridePermissions,
		Parameters: []Parameter{
			Param("overrideBlock", e.Block),
			Param("missingPermissions", e.Permission),
		},
		Code: "INSUFFICIENT_OVERRIDE_PERMISSIONS",
	}}
}

// Is reports denied overrides as domain.ErrValidation.
func (e *OverrideDenied) Is(target error) bool { return target == domain.ErrValidation }

// From converts an arbitrary error into a Cause. Causes pass through,
// domain.ErrNotFound becomes RecordNotFound for recordType/id and anything
// else becomes a ServerError.
func From(err error, recordType, id string) Cause {
	var c Cause
	if errors.As(err, &c) {
		return c
	}
	if errors.Is(err, domain.ErrNotFound) {
		return NotFound(recordType, id)
	}
	return Server("failed to fetch "+recordType, err)
}

// IsServer reports whether c is, or wraps, a ServerError.
func IsServer(c error) bool {
	var se *ServerError
	return errors.As(c, &se)
}
