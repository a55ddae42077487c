package observable

import (
	"errors"
	"strings"
)

// Write-path violations. Every error returned by the package wraps exactly one
// of these, so callers can test with errors.Is.
var (
	// ErrInvalidBottomValue is returned when Undefined is written. Only nil
	// (JSON null) is an acceptable empty value.
	ErrInvalidBottomValue = errors.New("observable: only null is a valid bottom value")

	// ErrMutationDuringComputation is returned for writes made while a
	// computed property is being evaluated.
	ErrMutationDuringComputation = errors.New("observable: cannot mutate inside a computed property")

	// ErrMethodReassignment is returned when writing to a method, action or
	// computed property.
	ErrMethodReassignment = errors.New("observable: cannot reassign a method")

	// ErrUnrecognizedKind is returned for descriptors whose kind has no handler.
	ErrUnrecognizedKind = errors.New("observable: unrecognized property kind")

	// ErrUndeclaredProperty is returned for keys the descriptor does not declare.
	ErrUndeclaredProperty = errors.New("observable: property is not declared")

	// ErrReservedKey is returned when writing to a virtual operation name.
	ErrReservedKey = errors.New("observable: key is reserved")

	// ErrReadonlyViolation is returned when writing a readonly property or
	// deleting a property that is not optional.
	ErrReadonlyViolation = errors.New("observable: property is readonly")

	// ErrNonStringKey is returned when writing an introspection key or when a
	// decoded diff path holds a non-string element.
	ErrNonStringKey = errors.New("observable: keys must be plain strings")

	// ErrMutationOutsideAction is returned for writes made while no action
	// scope is open on the node's root.
	ErrMutationOutsideAction = errors.New("observable: cannot mutate state outside of an action")

	// ErrExtraneousProperty is returned when an attached object carries a
	// property its descriptor does not declare.
	ErrExtraneousProperty = errors.New("observable: extraneous property")

	// ErrRequiredPropertyMissing is returned when an attached object lacks a
	// required property.
	ErrRequiredPropertyMissing = errors.New("observable: required property missing")

	// ErrNonObjectAssigned is returned when a structured property is given a
	// value that is not a plain container.
	ErrNonObjectAssigned = errors.New("observable: tried to set structured property to a non-container value")

	// ErrSymbolKeyForbidden is returned when an attached container has keys
	// that are not strings.
	ErrSymbolKeyForbidden = errors.New("observable: non-string keys are not serializable")

	// ErrKindMismatch is returned when a value does not fit a primitive kind.
	ErrKindMismatch = errors.New("observable: value does not match property kind")

	// ErrNoMatchingAlternative is returned when no oneOf alternative accepts
	// a value.
	ErrNoMatchingAlternative = errors.New("observable: value matches no alternative")

	// ErrInvalidPath is returned when a diff path does not resolve.
	ErrInvalidPath = errors.New("observable: path does not resolve")

	// ErrNotCallable is returned by Call for properties that are not actions
	// or methods.
	ErrNotCallable = errors.New("observable: property is not callable")

	// ErrCircularComputation is returned when a computed property reads
	// itself while being evaluated.
	ErrCircularComputation = errors.New("observable: computed property depends on itself")
)

// Error records the operation and cell path of a violation.
type Error struct {
	Op   string
	Path []string
	Err  error
}

func (e *Error) Error() string {
	msg := strings.TrimPrefix(e.Err.Error(), "observable: ")
	if len(e.Path) == 0 {
		return "observable: " + e.Op + ": " + msg
	}
	return "observable: " + e.Op + " " + strings.Join(e.Path, ".") + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// fail wraps err with op and path unless it already carries a path from a
// deeper write.
func fail(op string, path []string, err error) error {
	var pe *Error
	if errors.As(err, &pe) {
		return err
	}
	return &Error{Op: op, Path: path, Err: err}
}
