// Package domainerrors carries coded errors from services to the transport layer.
//
// Services return *Error values with a Code; handlers translate the code into an
// HTTP status through ToHTTPStatus and never inspect message text. Infrastructure
// facts (not found, conflict) live in pkg/platform/sentinel and are translated
// into coded errors by the service that observes them.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code identifies the kind of failure independent of its message.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeMissingInput       Code = "missing_input"
	CodeUploadRejected     Code = "upload_rejected"
	CodeInvalidCertificate Code = "invalid_certificate"
	CodeUnauthorized       Code = "unauthorized"
	CodeNotFound           Code = "not_found"
	CodeTooManyRequests    Code = "too_many_requests"
	CodeTimeout            Code = "timeout"
	CodePersistence        Code = "persistence_failure"
	CodeInternal           Code = "internal_error"
)

// Category separates faults the caller can fix from faults the service owns.
type Category int

const (
	ClientFault Category = iota
	ServerFault
)

func (c Category) String() string {
	if c == ServerFault {
		return "server_fault"
	}
	return "client_fault"
}

// Error is a coded domain error. Err, when set, is the underlying cause and is
// reachable through errors.Is / errors.As.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Category reports whether the error is the caller's fault or ours.
func (e *Error) Category() Category {
	return CategoryOf(e.Code)
}

// New builds a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and a caller-facing message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// As extracts the outermost *Error from an error chain.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// HasCode reports whether any *Error in the chain carries code.
func HasCode(err error, code Code) bool {
	de, ok := As(err)
	return ok && de.Code == code
}

// Is is an alias of HasCode kept for call sites that read better with it.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CategoryOf maps a code to the fault category.
func CategoryOf(code Code) Category {
	switch code {
	case CodeTimeout, CodePersistence, CodeInternal:
		return ServerFault
	default:
		return ClientFault
	}
}

// ToHTTPStatus maps a code to the response status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeMissingInput, CodeUploadRejected, CodeInvalidCertificate:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
