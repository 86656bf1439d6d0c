package llm

import "errors"

// ErrNoEndpoints is returned when a request resolves to no usable endpoint.
var ErrNoEndpoints = errors.New("no endpoints configured")

// TransientError is a failure that may succeed on retry: network errors,
// rate limiting and 5xx responses.
type TransientError struct {
	err error
}

func (e *TransientError) Error() string { return e.err.Error() }
func (e *TransientError) Unwrap() error { return e.err }

// NewTransientError wraps an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{err: err}
}

// FatalError is a failure that retrying cannot fix: bad credentials, bad
// requests and unknown providers.
type FatalError struct {
	err error
}

func (e *FatalError) Error() string { return e.err.Error() }
func (e *FatalError) Unwrap() error { return e.err }

// NewFatalError wraps an error as non-retryable.
func NewFatalError(err error) error {
	return &FatalError{err: err}
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// IsFatal reports whether err should not be retried.
func IsFatal(err error) bool {
	var fatal *FatalError
	return errors.As(err, &fatal)
}
