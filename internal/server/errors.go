package server

import "errors"

// Failure kinds surfaced by event handlers. Authentication failures
// never reach this package; the connection is rejected upstream.
var (
	ErrAccessDenied     = errors.New("access denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("store unavailable")
)

// eventError carries the short human-readable message sent back to the
// caller as an error event. The wrapped kind keeps "not found" and
// "not authorized" distinguishable in tests and logs.
type eventError struct {
	kind error
	msg  string
}

func eventErr(kind error, msg string) *eventError {
	return &eventError{kind: kind, msg: msg}
}

func (e *eventError) Error() string {
	return e.msg
}

func (e *eventError) Unwrap() error {
	return e.kind
}
