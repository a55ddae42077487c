package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/vango-dev/statetree/pkg/observable"
)

// Category groups error codes.
type Category string

const (
	CategoryWrite       Category = "write"
	CategoryAttach      Category = "attach"
	CategoryComputation Category = "computation"
	CategoryReplay      Category = "replay"
	CategorySchema      Category = "schema"
	CategoryCodec       Category = "codec"
	CategoryConfig      Category = "config"
	CategoryCLI         Category = "cli"
)

// StateError is a registered error with the cell path it happened at.
type StateError struct {
	// Code is the registered identifier, e.g. "S007".
	Code string

	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation.
	Detail string

	// Path is the cell the violation happened at, if known.
	Path []string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *StateError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *StateError) Unwrap() error {
	return e.Wrapped
}

// PathString returns the path joined with dots, or "" at the root.
func (e *StateError) PathString() string {
	return strings.Join(e.Path, ".")
}

// WithPath sets the cell path.
func (e *StateError) WithPath(path []string) *StateError {
	e.Path = path
	return e
}

// WithSuggestion overrides the registered suggestion.
func (e *StateError) WithSuggestion(s string) *StateError {
	e.Suggestion = s
	return e
}

// WithDetail overrides the registered explanation.
func (e *StateError) WithDetail(d string) *StateError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *StateError) Wrap(err error) *StateError {
	e.Wrapped = err
	return e
}

// New creates a StateError from a registered code.
func New(code string) *StateError {
	template, ok := GetTemplate(code)
	if !ok {
		return &StateError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &StateError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
	}
}

// Newf creates a StateError with a formatted message and no code.
func Newf(category Category, format string, args ...any) *StateError {
	return &StateError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError classifies err. A *StateError in the chain is returned as is.
// Otherwise the first registered sentinel found in the chain decides the code,
// and an *observable.Error in the chain supplies the path. Errors matching no
// sentinel get an uncoded StateError of category fallback.
func FromError(err error, fallback Category) *StateError {
	if err == nil {
		return nil
	}
	var se *StateError
	if stderrors.As(err, &se) {
		return se
	}

	code := CodeOf(err)
	var out *StateError
	if code == "" {
		out = &StateError{Category: fallback, Message: err.Error()}
	} else {
		out = New(code)
	}
	out.Wrapped = err

	var oe *observable.Error
	if stderrors.As(err, &oe) {
		out.Path = oe.Path
	}
	return out
}

// CodeOf returns the code of the first registered sentinel err matches, or "".
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	registryMu.RLock()
	defer registryMu.RUnlock()
	for _, s := range sentinels {
		if stderrors.Is(err, s.err) {
			return s.code
		}
	}
	return ""
}

// CategoryOf returns the category of err, or "" for unregistered errors.
func CategoryOf(err error) Category {
	code := CodeOf(err)
	if code == "" {
		return ""
	}
	t, _ := GetTemplate(code)
	return t.Category
}
