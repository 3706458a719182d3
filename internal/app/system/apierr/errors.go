// Package apierr defines the structured errors returned by the admin API.
//
// Each error carries a Code; the code decides the HTTP status and the public
// message. Handlers never pick a status from an error's text.
package apierr

import (
	stderrors "errors"
	"fmt"
	"net/http"

	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/mongo"
)

// Code identifies a class of failure.
type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeRateLimited   Code = "RATE_LIMITED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"
)

// Metadata is the HTTP presentation of a Code.
type Metadata struct {
	HTTPStatus     int
	PublicMessage  string
	DetailsAllowed bool
	// ShowMessage reports whether the error's own message may be sent to
	// the client instead of PublicMessage.
	ShowMessage bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ShowMessage: true},
	CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ShowMessage: true},
	CodeForbidden:     {HTTPStatus: http.StatusForbidden, PublicMessage: "access denied", ShowMessage: true},
	CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ShowMessage: true},
	CodeConflict:      {HTTPStatus: http.StatusConflict, PublicMessage: "conflict detected", ShowMessage: true},
	CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ShowMessage: true},
	CodeRateLimited:   {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "too many requests", ShowMessage: true},
	CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error"},
	CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable"},
}

// MetadataFor returns the presentation for code, falling back to CodeInternal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded API error.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

// New returns an error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

// Newf is New with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

// WithDetails returns a copy of e carrying details for the client.
func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	cp := *e
	cp.details = details
	return &cp
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// Status returns the HTTP status for e's code.
func (e *Error) Status() int {
	return MetadataFor(e.Code()).HTTPStatus
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As extracts the first *Error in err's chain.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stderrors.As(err, &typed) {
		return typed
	}
	return nil
}

// IsCode reports whether err carries code.
func IsCode(err error, code Code) bool {
	t := As(err)
	return t != nil && t.code == code
}

// Convenience constructors for the common cases.

func Validation(message string) *Error { return New(CodeValidation, message) }
func NotFound(what string) *Error      { return New(CodeNotFound, what+" not found") }
func Forbidden(message string) *Error  { return New(CodeForbidden, message) }
func Conflict(message string) *Error   { return New(CodeConflict, message) }
func State(message string) *Error      { return New(CodeStateConflict, message) }

// FromStore classifies a MongoDB error. what names the missing document
// for ErrNoDocuments. Already-coded errors pass through unchanged.
func FromStore(err error, what string) error {
	if err == nil {
		return nil
	}
	if As(err) != nil {
		return err
	}
	switch {
	case stderrors.Is(err, mongo.ErrNoDocuments):
		return Wrap(CodeNotFound, err, what+" not found")
	case wafflemongo.IsDup(err):
		return Wrap(CodeConflict, err, what+" already exists")
	case mongo.IsTimeout(err), mongo.IsNetworkError(err):
		return Wrap(CodeDependency, err, "database unavailable")
	}
	return Wrap(CodeInternal, err, "database error")
}
