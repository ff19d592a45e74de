/*
errors.go - Error taxonomy for the billing ledger core

PURPOSE:
  All error types in one place. Callers dispatch with errors.Is/errors.As;
  the structured types carry the detail an HTTP layer needs to build a
  response.

CATEGORIES:
  1. Validation errors - accumulated field-level failures, never partial
  2. Not-found errors  - payer/zone/fee lookups that came up empty
  3. Conflict errors   - relationship state changed under the operator
  4. Storage errors    - transaction could not complete, always rolled back
*/
package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced payer does not exist.
	// A deleted payer is indistinguishable from one that never existed.
	ErrNotFound = errors.New("payer not found")

	// ErrFeeNotFound is returned when no active fee catalog row matches a
	// (type, category) pair. Distinct from a configured fee of zero.
	ErrFeeNotFound = errors.New("no active fee configured")

	// ErrZoneNotFound is returned when a referenced zone does not exist.
	ErrZoneNotFound = errors.New("zone not found")

	// ErrBillNotFound is returned when a payment references a missing bill.
	ErrBillNotFound = errors.New("bill not found")

	// ErrInvalidAmount is returned when a monetary input is negative or
	// otherwise outside the monetary domain.
	ErrInvalidAmount = errors.New("invalid monetary amount")

	// ErrConflict is returned when dependent-record state changed between
	// inspection and deletion. Nothing was deleted.
	ErrConflict = errors.New("relationship state changed")

	// ErrStorageFailure is returned when the underlying transaction could
	// not complete. The transaction was rolled back.
	ErrStorageFailure = errors.New("storage failure")

	// ErrStorageTimeout is returned when the store's deadline elapsed
	// before the transaction committed. The transaction was rolled back.
	ErrStorageTimeout = errors.New("storage timeout")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError is one user-facing validation message tied to a field.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) String() string {
	return e.Field + ": " + e.Message
}

// ValidationError accumulates every applicable field failure so the caller
// can present them in one response. Required-field messages come first,
// format messages second, cross-field/uniqueness messages last.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.String()
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Add appends a field failure.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Merge appends all failures from another validation error.
func (e *ValidationError) Merge(o *ValidationError) {
	if o != nil {
		e.Fields = append(e.Fields, o.Fields...)
	}
}

// HasErrors reports whether any failure was recorded.
func (e *ValidationError) HasErrors() bool {
	return len(e.Fields) > 0
}

// ConflictError reports the summaries that disagreed when a deletion was
// aborted. Unwraps to ErrConflict.
type ConflictError struct {
	Expected RelationshipSummary
	Actual   RelationshipSummary
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("relationship state changed: expected %s, found %s",
		e.Expected.Describe(), e.Actual.Describe())
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// InvalidAmountError names the field whose monetary value was rejected.
// Unwraps to ErrInvalidAmount.
type InvalidAmountError struct {
	Field string
	Value string
}

func (e *InvalidAmountError) Error() string {
	return fmt.Sprintf("invalid monetary amount for %s: %s", e.Field, e.Value)
}

func (e *InvalidAmountError) Unwrap() error {
	return ErrInvalidAmount
}
