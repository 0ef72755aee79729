package errors

import (
	"errors"
	"fmt"
	"maps"
)

// Error is a domain error carrying a reason code.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// New creates a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error around an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code, so sentinels survive WithMetadata and Wrap.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return e.Code == other.Code
}

// WithMetadata returns a copy of e with the key/value pairs merged into its metadata.
func (e *Error) WithMetadata(kv ...string) *Error {
	clone := *e
	clone.Metadata = make(map[string]string, len(e.Metadata)+len(kv)/2)
	maps.Copy(clone.Metadata, e.Metadata)
	for i := 0; i+1 < len(kv); i += 2 {
		clone.Metadata[kv[i]] = kv[i+1]
	}
	return &clone
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	clone := *e
	clone.Cause = cause
	return &clone
}

// GetCode extracts the code from any error, CodeUnknown when err is not a domain error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// KindOf returns the taxonomy bucket of err.
func KindOf(err error) Kind {
	return GetCode(err).Kind()
}

// GetMetadata extracts metadata from a domain error.
func GetMetadata(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Metadata
	}
	return nil
}
