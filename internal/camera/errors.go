package camera

import (
	"errors"
	"fmt"
)

// Error is a capture failure annotated with the operation that produced it
// and the state the machine was in when it was attempted.
type Error struct {
	Code    string
	Op      Operation
	State   State
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Code
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.State != "" {
		msg = fmt.Sprintf("%s (state %s)", msg, e.State)
	}
	if e.Message != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Message)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code, so errors.Is(err, ErrTryAgain)
// holds for every try-again error regardless of op and state.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && t.Op == "" && t.State == ""
}

// Error codes
const (
	ErrCodeNotFound            = "DEVICE_NOT_FOUND"
	ErrCodeNotCharDevice       = "NOT_CHAR_DEVICE"
	ErrCodeOpenFailed          = "OPEN_FAILED"
	ErrCodeIoctlFailed         = "IOCTL_FAILED"
	ErrCodeCapabilityMissing   = "CAPABILITY_MISSING"
	ErrCodeInsufficientBuffers = "INSUFFICIENT_BUFFERS"
	ErrCodeOutOfMemory         = "OUT_OF_MEMORY"
	ErrCodeMapFailed           = "MAP_FAILED"
	ErrCodeIndexOutOfRange     = "INDEX_OUT_OF_RANGE"
	ErrCodeStateViolation      = "STATE_VIOLATION"
	ErrCodeTryAgain            = "TRY_AGAIN"
	ErrCodeInvalidBuffer       = "INVALID_BUFFER"
	ErrCodeInvalidControl      = "INVALID_CONTROL"
	ErrCodeTeardownFailed      = "TEARDOWN_FAILED"
)

// ErrTryAgain is returned by DequeueBuffer when no filled buffer is ready yet.
var ErrTryAgain = &Error{Code: ErrCodeTryAgain, Message: "no filled buffer ready"}

// NewError creates a new capture error.
func NewError(code string, op Operation, state State, cause error) *Error {
	return &Error{
		Code:  code,
		Op:    op,
		State: state,
		Cause: cause,
	}
}

// IsCode reports whether err carries the given capture error code.
func IsCode(err error, code string) bool {
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Code == code
	}
	return false
}

// IsStateViolation reports whether err is a rejected out-of-order call.
func IsStateViolation(err error) bool {
	return IsCode(err, ErrCodeStateViolation)
}
