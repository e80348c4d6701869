package errors

// WrapOpComponent provides a convenience helper to wrap errors with consistent Op and Component propagation.
// If err is nil, returns nil.
func WrapOpComponent(err error, op, component string) error {
	if err == nil {
		return nil
	}
	return NewWithComponent(Operation(op), component, err)
}

// WrapOpComponentCode wraps err like WrapOpComponent and tags it with code.
// Storage and network codes mark the result retryable.
// If err is nil, returns nil.
func WrapOpComponentCode(err error, op, component string, code ErrorCode) error {
	if err == nil {
		return nil
	}
	e := NewWithComponent(Operation(op), component, err)
	e.Code = code
	e.Retryable = code == ErrCodeStorageFailure || code == ErrCodeNetworkFailure
	return e
}
