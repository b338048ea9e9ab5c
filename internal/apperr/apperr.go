// Package apperr defines the typed error taxonomy every service
// boundary in this module fails with: validation, state,
// not-found, authorization, contention, internal.
package apperr

import "fmt"

// Kind classifies an error for HTTP status mapping and logging.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindState         Kind = "state"
	KindNotFound      Kind = "not_found"
	KindAuthorization Kind = "authorization"
	KindContention    Kind = "contention"
	KindInternal      Kind = "internal"
)

// Error is the typed error every service boundary returns.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Details map[string]any
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

func new_(kind Kind, code, msg string, details map[string]any) *Error {
	return &Error{Kind: kind, Code: code, Message: msg, Details: details}
}

func Validation(code, msg string, details map[string]any) *Error {
	return new_(KindValidation, code, msg, details)
}

func State(code, msg string, details map[string]any) *Error {
	return new_(KindState, code, msg, details)
}

func NotFound(code, msg string) *Error {
	return new_(KindNotFound, code, msg, nil)
}

func Authorization(code, msg string) *Error {
	return new_(KindAuthorization, code, msg, nil)
}

func Contention(code, msg string) *Error {
	return new_(KindContention, code, msg, nil)
}

func Internal(code, msg string) *Error {
	return new_(KindInternal, code, msg, nil)
}

// As extracts an *Error from err, if it is one.
func As(err error) (*Error, bool) {
	e, ok := err.(*Error)
	return e, ok
}
