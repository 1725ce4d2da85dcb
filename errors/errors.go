package errors

import (
	stderrors "errors"
	"fmt"
)

// Error is the unified composition error type.
type Error struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Category tells argument errors apart from fatal composition errors.
	Category Category `json:"category"`
	// Message is a human-readable error message.
	Message string `json:"message"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is the underlying error that caused this error.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !stderrors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// New creates an Error, deriving the category from the code.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:     code,
		Category: CategoryOf(code),
		Message:  message,
	}
}

// Newf is New with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// --- Argument errors ---

// InvalidArgument reports a nil or empty required argument.
func InvalidArgument(arg, reason string) *Error {
	return New(ErrCodeInvalidArgument, fmt.Sprintf("invalid argument %s: %s", arg, reason)).
		WithDetail("argument", arg)
}

// Ineligible reports a value or type that cannot be used as an export.
func Ineligible(what, reason string) *Error {
	return New(ErrCodeIneligibleExport, fmt.Sprintf("%s cannot be exported: %s", what, reason)).
		WithDetail("export", what)
}

// Disposed reports an operation on a disposed container.
func Disposed(containerID string) *Error {
	return New(ErrCodeDisposed, "container has been disposed").
		WithDetail("container_id", containerID)
}

// NotFound reports an export that resolved to nothing.
func NotFound(name string) *Error {
	return New(ErrCodeNotFound, fmt.Sprintf("no export satisfies %q", name)).
		WithDetail("name", name)
}

// InvalidConfig reports a configuration validation failure.
func InvalidConfig(message string) *Error {
	return New(ErrCodeInvalidConfig, message)
}

// --- Composition errors ---

// DuplicatePrimary reports a type declaring more than one primary constructor.
func DuplicatePrimary(typeName string, count int) *Error {
	return New(ErrCodeDuplicatePrimary, fmt.Sprintf("%s declares %d primary constructors", typeName, count)).
		WithDetail("type", typeName)
}

// DuplicateCreatorMethod reports more than one creator method compatible with a request.
func DuplicateCreatorMethod(typeName, requested string, count int) *Error {
	return New(ErrCodeDuplicateCreatorMethod,
		fmt.Sprintf("%s declares %d creator methods compatible with %s", typeName, count, requested)).
		WithDetail("type", typeName).
		WithDetail("requested", requested)
}

// SharingConflict reports contradicting shared/private declarations.
func SharingConflict(typeName, reason string) *Error {
	return New(ErrCodeSharingConflict, fmt.Sprintf("%s: %s", typeName, reason)).
		WithDetail("type", typeName)
}

// MissingWriteAccessor reports an import slot that cannot be assigned.
func MissingWriteAccessor(typeName, field string) *Error {
	return New(ErrCodeMissingWriteAccessor, fmt.Sprintf("import %s.%s has no write accessor", typeName, field)).
		WithDetail("type", typeName).
		WithDetail("field", field)
}

// ConstructionFailed wraps an error returned by a constructor, factory or creator.
func ConstructionFailed(name, typeName string, cause error) *Error {
	return New(ErrCodeConstructionFailed, fmt.Sprintf("building %s for export %q failed", typeName, name)).
		WithDetail("name", name).
		WithDetail("type", typeName).
		WithCause(cause)
}

// --- Inspection ---

// As converts an error to an *Error if possible.
func As(err error) (*Error, bool) {
	var e *Error
	if stderrors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	e, ok := As(err)
	return ok && e.Code == code
}

// IsArgument reports whether err is an argument error.
func IsArgument(err error) bool {
	e, ok := As(err)
	return ok && e.Category == CategoryArgument
}

// IsComposition reports whether err is a fatal composition error.
func IsComposition(err error) bool {
	e, ok := As(err)
	return ok && e.Category == CategoryComposition
}
