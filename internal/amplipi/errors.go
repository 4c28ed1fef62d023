package amplipi

import (
	"errors"
	"fmt"
)

// RejectedError represents a non-200 response from the controller.
type RejectedError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RejectedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("amplipi %s %s rejected: http %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("amplipi %s %s rejected: http %d (%s)", e.Method, e.Path, e.StatusCode, e.Body)
}

// TimeoutError indicates a request exceeded its deadline.
type TimeoutError struct {
	Method string
	Path   string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("amplipi %s %s timed out", e.Method, e.Path)
}

// UnreachableError indicates the controller could not be reached.
type UnreachableError struct {
	Method string
	Path   string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("amplipi %s %s unreachable: %v", e.Method, e.Path, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// DecodeError indicates the controller answered but the body could not be
// decoded. It is not a connectivity failure.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("amplipi %s: malformed response: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is a decode failure rather than a
// transport or status failure.
func IsMalformed(err error) bool {
	var decodeErr *DecodeError
	return errors.As(err, &decodeErr)
}
