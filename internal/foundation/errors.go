// Package foundation provides the value model, entity identifiers, string
// interning, and persistent collections shared by every other package.
package foundation

import "fmt"

// ErrorKind enumerates the taxonomy of errors a world/engine operation can
// return.
type ErrorKind string

const (
	// Schema errors.
	ErrUnknownComponent    ErrorKind = "unknown_component"
	ErrUnknownRelationship ErrorKind = "unknown_relationship"
	ErrMissingField        ErrorKind = "missing_field"
	ErrTypeMismatch        ErrorKind = "type_mismatch"
	ErrUnknownField        ErrorKind = "unknown_field"
	ErrCardinality         ErrorKind = "cardinality"
	ErrCascadeDenied       ErrorKind = "cascade_denied"

	// Entity errors.
	ErrStaleEntity ErrorKind = "stale_entity"
	ErrNullEntity  ErrorKind = "null_entity"

	// Pattern errors.
	ErrUnboundNegation   ErrorKind = "unbound_negation"
	ErrUnboundVariable   ErrorKind = "unbound_variable"
	ErrInvalidFieldMap   ErrorKind = "invalid_field_map"

	// Rule runtime errors.
	ErrQuiescenceExceeded ErrorKind = "quiescence_exceeded"
	ErrDerivedCycle       ErrorKind = "derived_cycle"
	ErrEffectFailed       ErrorKind = "effect_failed"
	ErrVMError            ErrorKind = "vm_error"

	// Constraints.
	ErrConstraintViolation ErrorKind = "constraint_violation"

	// Timeline.
	ErrTickNotRetained ErrorKind = "tick_not_retained"
	ErrMergeConflict   ErrorKind = "merge_conflict"
	ErrBranchUnknown   ErrorKind = "branch_unknown"
)

// LTError is the single error type returned by every Longtable operation.
// It carries enough context to build a useful message without string
// parsing by the caller.
type LTError struct {
	Kind    ErrorKind
	Message string
	Entity  string // optional: entity/component/relationship name involved
	Cause   error
}

func (e *LTError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Entity)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *LTError) Unwrap() error {
	return e.Cause
}

// NewError constructs an LTError of the given kind.
func NewError(kind ErrorKind, message string) *LTError {
	return &LTError{Kind: kind, Message: message}
}

// NewErrorf constructs an LTError with a formatted message.
func NewErrorf(kind ErrorKind, format string, args ...any) *LTError {
	return &LTError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WithEntity attaches the name of the entity/component/relationship the
// error concerns and returns the receiver for chaining.
func (e *LTError) WithEntity(name string) *LTError {
	e.Entity = name
	return e
}

// WithCause attaches an underlying cause and returns the receiver for
// chaining.
func (e *LTError) WithCause(cause error) *LTError {
	e.Cause = cause
	return e
}

// KindOf extracts the ErrorKind from err if it is (or wraps) an *LTError,
// returning ok=false otherwise.
func KindOf(err error) (ErrorKind, bool) {
	var lt *LTError
	if ltErr, ok := err.(*LTError); ok {
		lt = ltErr
		return lt.Kind, true
	}
	type unwrapper interface{ Unwrap() error }
	for u, ok := err.(unwrapper); ok; u, ok = err.(unwrapper) {
		err = u.Unwrap()
		if ltErr, ok := err.(*LTError); ok {
			return ltErr.Kind, true
		}
	}
	return "", false
}
