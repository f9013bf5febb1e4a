package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/splitscript/internal/script"
)

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("runtime closed")

	// ErrSettingsReadOnly is returned when a script adds a toggle outside
	// startup.
	ErrSettingsReadOnly = errors.New("settings are read-only outside startup")
)

// CallError wraps a failure raised by, or about, one script method.
type CallError struct {
	Method script.MethodName
	Err    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *CallError) Unwrap() error { return e.Err }

// RuntimeError reports a failure of the runtime itself rather than of a
// script method.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Process names the process involved, if any.
	Process string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeInvalidConfig indicates New was given a missing collaborator.
	ErrCodeInvalidConfig RuntimeErrorCode = "INVALID_CONFIG"

	// ErrCodeProcessList indicates process enumeration failed.
	ErrCodeProcessList RuntimeErrorCode = "PROCESS_LIST"

	// ErrCodeSampleFailed indicates a descriptor could not be sampled for a
	// reason other than the process exiting.
	ErrCodeSampleFailed RuntimeErrorCode = "SAMPLE_FAILED"

	// ErrCodeLifecycle indicates startup or shutdown was run out of order.
	ErrCodeLifecycle RuntimeErrorCode = "LIFECYCLE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Process != "" {
		msg += fmt.Sprintf(" (process=%s)", e.Process)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RuntimeError) Unwrap() error { return e.Err }

// IsCallError reports whether err wraps a CallError, and for which method.
func IsCallError(err error) (script.MethodName, bool) {
	var ce *CallError
	if errors.As(err, &ce) {
		return ce.Method, true
	}
	return "", false
}

// IsResultTypeError reports whether err wraps a wrong-typed method result.
// Uses errors.As to handle wrapped errors.
func IsResultTypeError(err error) bool {
	var te *script.ResultTypeError
	return errors.As(err, &te)
}

// IsProcessListError reports whether err is a process enumeration failure.
func IsProcessListError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeProcessList
	}
	return false
}

// IsSampleError reports whether err is a descriptor sampling failure.
func IsSampleError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeSampleFailed
	}
	return false
}
