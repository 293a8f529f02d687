package errors

import "fmt"

// ErrorCode represents a Cortex error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrIO             ErrorCode = "IO"
	ErrUnavailable    ErrorCode = "UNAVAILABLE"
	ErrInternal       ErrorCode = "INTERNAL"
)

// CortexError represents a structured error with code and details.
type CortexError struct {
	Code    ErrorCode
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *CortexError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates an error for invalid request parameters.
func NewInvalidRequest(msg string) *CortexError {
	return &CortexError{
		Code:    ErrInvalidRequest,
		Message: msg,
	}
}

// NewNotFound creates an error for a capsule or diagnosis that does not
// exist. Distinct from ErrIO: not-found covers unwritten ids, missing
// store directories, and files deleted out from under the store.
func NewNotFound(identifier string) *CortexError {
	return &CortexError{
		Code:    ErrNotFound,
		Message: fmt.Sprintf("not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewIO creates an error for a read or write that failed for reasons
// other than the unit not existing (permissions, disk full).
func NewIO(op string, err error) *CortexError {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &CortexError{
		Code:    ErrIO,
		Message: msg,
	}
}

// NewUnavailable creates an error for an external service that could not
// be reached or did not answer usefully.
func NewUnavailable(msg string) *CortexError {
	return &CortexError{
		Code:    ErrUnavailable,
		Message: msg,
	}
}

// NewInternal creates an error for unexpected internal failures.
func NewInternal(err error) *CortexError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &CortexError{
		Code:    ErrInternal,
		Message: msg,
	}
}

// Is checks if an error is a CortexError with the given code.
func Is(err error, code ErrorCode) bool {
	if cErr, ok := err.(*CortexError); ok {
		return cErr.Code == code
	}
	return false
}
