package story

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes failures that cross component boundaries.
type ErrorCode string

const (
	// ErrCodeStorageUnavailable indicates the local store could not be opened
	// or a transaction could not be started. Fatal to the calling operation.
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// ErrCodeRemoteRejected indicates the Story API answered with an error
	// payload or a non-2xx status. Retryable.
	ErrCodeRemoteRejected ErrorCode = "REMOTE_REJECTED"

	// ErrCodeNetworkUnreachable indicates the request never got an answer.
	// Retryable.
	ErrCodeNetworkUnreachable ErrorCode = "NETWORK_UNREACHABLE"
)

// ErrStorageUnavailable is the sentinel matched by errors.Is for any
// *Error carrying ErrCodeStorageUnavailable.
var ErrStorageUnavailable = &Error{Code: ErrCodeStorageUnavailable}

// Error is the domain error shared by the store and the gateway.
type Error struct {
	Code    ErrorCode
	Op      string // operation that failed, e.g. "open", "create story"
	Status  int    // HTTP status for remote errors, 0 otherwise
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so callers can compare against
// ErrStorageUnavailable.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// StorageUnavailable wraps err as a storage failure for op.
func StorageUnavailable(op string, err error) *Error {
	return &Error{Code: ErrCodeStorageUnavailable, Op: op, Err: err}
}

// RemoteRejected builds a rejection for op with the server's status and message.
func RemoteRejected(op string, status int, message string) *Error {
	return &Error{Code: ErrCodeRemoteRejected, Op: op, Status: status, Message: message}
}

// NetworkUnreachable wraps a transport failure for op.
func NetworkUnreachable(op string, err error) *Error {
	return &Error{Code: ErrCodeNetworkUnreachable, Op: op, Err: err}
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsRetryable reports whether err is a remote rejection or network failure.
// The sync coordinator leaves the record pending for either.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrCodeRemoteRejected, ErrCodeNetworkUnreachable:
		return true
	}
	return false
}

// IsStorageUnavailable reports whether err came from a store that could not
// be opened or used.
func IsStorageUnavailable(err error) bool {
	return CodeOf(err) == ErrCodeStorageUnavailable
}
