// Package errors provides custom error types for the sibling kit packages
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents the type of error that occurred
type ErrorCode string

const (
	ErrCodeInvalidKey        ErrorCode = "INVALID_KEY"
	ErrCodeInvalidResolver   ErrorCode = "INVALID_RESOLVER"
	ErrCodeSiblingConflict   ErrorCode = "SIBLING_CONFLICT"
	ErrCodeNetworkFailure    ErrorCode = "NETWORK_FAILURE"
	ErrCodeStorageFailure    ErrorCode = "STORAGE_FAILURE"
	ErrCodeValidationFailure ErrorCode = "VALIDATION_FAILURE"
)

// Operation represents the object operation during which an error occurred
type Operation string

const (
	OpNew         Operation = "new"
	OpAccess      Operation = "access"
	OpReload      Operation = "reload"
	OpStore       Operation = "store"
	OpDelete      Operation = "delete"
	OpResolve     Operation = "resolve"
	OpSetResolver Operation = "set_resolver"
	OpTransport   Operation = "transport"
	OpCache       Operation = "cache"
	OpConfig      Operation = "config"
)

// Sentinel errors. ObjectError values unwrap to one of these when they
// describe a contract violation rather than a failure of a collaborator.
var (
	// ErrInvalidKey is returned when a key is explicitly given as the empty string.
	ErrInvalidKey = errors.New("key name must be absent or a non-empty string")

	// ErrInvalidResolver is returned when a resolver slot is assigned a value
	// that cannot be called.
	ErrInvalidResolver = errors.New("resolver is not a function")

	// ErrConflict is returned when single-value access is attempted while the
	// object does not hold exactly one sibling.
	ErrConflict = errors.New("exactly one sibling required")

	// ErrInvalidObject is returned when an object is built without its
	// required collaborators.
	ErrInvalidObject = errors.New("object requires a store client and a bucket")

	// ErrKeyRequired is returned when an operation needs a key the object
	// has not been assigned yet.
	ErrKeyRequired = errors.New("object has no key")

	// ErrInvalidSibling is returned when a sibling list holds a nil entry or
	// a sibling attached to another object.
	ErrInvalidSibling = errors.New("sibling is nil or belongs to another object")
)

// ObjectError represents an error that occurred while operating on a stored object
type ObjectError struct {
	// Operation during which the error occurred
	Op Operation

	// Component that generated the error (e.g., "object", "transport")
	Component string

	// Underlying error
	Err error

	// Whether the operation can be retried
	Retryable bool

	// Error code for the error type
	Code ErrorCode

	// Metadata for additional context
	Metadata map[string]interface{}
}

func (e *ObjectError) Error() string {
	var msg string
	if e.Component != "" {
		msg = fmt.Sprintf("%s operation failed in %s component", e.Op, e.Component)
	} else {
		msg = fmt.Sprintf("%s operation failed", e.Op)
	}

	if e.Code != "" {
		msg += fmt.Sprintf(" [%s]", e.Code)
	}

	return msg + fmt.Sprintf(": %v", e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// WithMetadata attaches a key/value pair and returns the same error for chaining.
func (e *ObjectError) WithMetadata(key string, value interface{}) *ObjectError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// NewInvalidKeyError creates the error returned for an empty key
func NewInvalidKeyError() *ObjectError {
	return &ObjectError{
		Code:      ErrCodeInvalidKey,
		Op:        OpNew,
		Component: "object",
		Err:       ErrInvalidKey,
	}
}

// NewInvalidResolverError creates the error returned for an uncallable resolver
func NewInvalidResolverError(op Operation, component string) *ObjectError {
	return &ObjectError{
		Code:      ErrCodeInvalidResolver,
		Op:        op,
		Component: component,
		Err:       ErrInvalidResolver,
	}
}

// NewConflictError creates the error returned when single-value access is
// attempted on an object holding the given number of siblings
func NewConflictError(op Operation, siblings int) *ObjectError {
	return &ObjectError{
		Code:      ErrCodeSiblingConflict,
		Op:        op,
		Component: "object",
		Err:       fmt.Errorf("%w, object has %d", ErrConflict, siblings),
		Metadata:  map[string]interface{}{"siblings": siblings},
	}
}

// NewStorageError creates a new storage-related ObjectError
func NewStorageError(op Operation, cause error) *ObjectError {
	return &ObjectError{
		Code:      ErrCodeStorageFailure,
		Op:        op,
		Component: "storage",
		Err:       cause,
		Retryable: true,
	}
}

// NewValidationError creates a new validation-related ObjectError
func NewValidationError(op Operation, cause error) *ObjectError {
	return &ObjectError{
		Code:      ErrCodeValidationFailure,
		Op:        op,
		Err:       cause,
		Retryable: false,
	}
}

// NewNetworkError creates a new network-related ObjectError
func NewNetworkError(op Operation, cause error) *ObjectError {
	return &ObjectError{
		Code:      ErrCodeNetworkFailure,
		Op:        op,
		Component: "transport",
		Err:       cause,
		Retryable: true,
	}
}

// New creates a new ObjectError
func New(op Operation, err error) *ObjectError {
	return &ObjectError{
		Op:  op,
		Err: err,
	}
}

// NewWithComponent creates a new ObjectError with component information
func NewWithComponent(op Operation, component string, err error) *ObjectError {
	return &ObjectError{
		Op:        op,
		Component: component,
		Err:       err,
	}
}

// IsRetryable checks if an error is a retryable ObjectError
func IsRetryable(err error) bool {
	var objErr *ObjectError
	if errors.As(err, &objErr) {
		return objErr.Retryable
	}
	return false
}

// CodeOf returns the ErrorCode of the first ObjectError in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var objErr *ObjectError
	if errors.As(err, &objErr) {
		return objErr.Code
	}
	return ""
}
