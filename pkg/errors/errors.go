package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// Error codes double as HTTP status codes at the request boundary.
const (
	CodeValidation  = http.StatusBadRequest
	CodeNotFound    = http.StatusNotFound
	CodeConflict    = http.StatusConflict
	CodeStoreIO     = http.StatusInternalServerError
	CodeSync        = http.StatusBadGateway
	CodeUnavailable = http.StatusServiceUnavailable
)

// Error represents a custom error with stack trace
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
	Stack   string `json:"stack,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message != "" {
		if e.Err != nil {
			return e.Message + ": " + e.Err.Error()
		}
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "unknown error"
}

// Unwrap implements the errors.Wrapper interface
func (e *Error) Unwrap() error {
	return e.Err
}

// WithCode creates a new error with code
func WithCode(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Stack:   captureStack(),
	}
}

// WithCodef creates a new error with code and formatted message
func WithCodef(code int, format string, args ...interface{}) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Stack:   captureStack(),
	}
}

// Wrap wraps an error with message. The code of a wrapped *Error is kept.
func Wrap(err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    GetCode(err),
		Message: message,
		Err:     err,
		Stack:   captureStack(),
	}
}

// Wrapf wraps an error with formatted message
func Wrapf(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    GetCode(err),
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// Validation reports a missing or malformed field. Never retried.
func Validation(format string, args ...interface{}) *Error {
	return WithCodef(CodeValidation, format, args...)
}

// NotFound reports a key absent from a table. The table is left unmodified.
func NotFound(format string, args ...interface{}) *Error {
	return WithCodef(CodeNotFound, format, args...)
}

// Conflict reports a duplicate key or an illegal status transition.
func Conflict(format string, args ...interface{}) *Error {
	return WithCodef(CodeConflict, format, args...)
}

// StoreIO wraps a file read/write failure.
func StoreIO(err error, format string, args ...interface{}) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    CodeStoreIO,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
}

// Sync wraps a remote fetch or payload failure seen by a poller.
func Sync(err error, format string, args ...interface{}) *Error {
	e := &Error{
		Code:    CodeSync,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
		Stack:   captureStack(),
	}
	return e
}

// captureStack captures the current stack trace
func captureStack() string {
	buf := make([]byte, 1024)
	n := runtime.Stack(buf, false)
	stack := string(buf[:n])

	// drop the captureStack / constructor frames
	lines := strings.Split(stack, "\n")
	if len(lines) > 6 {
		stack = strings.Join(lines[6:], "\n")
	}

	return strings.TrimSpace(stack)
}

// GetCode returns the code of the first coded error in the chain, 0 if none.
func GetCode(err error) int {
	var e *Error
	for err != nil {
		if !stderrors.As(err, &e) {
			return 0
		}
		if e.Code != 0 {
			return e.Code
		}
		err = e.Err
	}
	return 0
}

// GetMessage returns the error message
func GetMessage(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Error()
	}
	if err != nil {
		return err.Error()
	}
	return ""
}

// GetStack returns the error stack trace
func GetStack(err error) string {
	if e, ok := err.(*Error); ok {
		return e.Stack
	}
	return ""
}

// Is checks if the error chain contains the target error
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

func IsNotFound(err error) bool   { return GetCode(err) == CodeNotFound }
func IsValidation(err error) bool { return GetCode(err) == CodeValidation }
func IsConflict(err error) bool   { return GetCode(err) == CodeConflict }

// Cause returns the underlying error
func Cause(err error) error {
	for err != nil {
		if e, ok := err.(*Error); ok && e.Err != nil {
			err = e.Err
		} else {
			return err
		}
	}
	return err
}

// Format implements fmt.Formatter
func (e *Error) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			fmt.Fprintf(s, "%s", e.Error())
			if e.Stack != "" {
				fmt.Fprintf(s, "\n%s", e.Stack)
			}
			return
		}
		fallthrough
	case 's':
		fmt.Fprintf(s, "%s", e.Error())
	case 'q':
		fmt.Fprintf(s, "%q", e.Error())
	}
}
