// Package apperr defines the user-facing error taxonomy shared by the REST and
// real-time boundaries.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeInvalidOperation Code = "INVALID_OPERATION"
	CodeUnauthenticated  Code = "UNAUTHENTICATED"
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeConflict         Code = "CONFLICT"
	CodeRateLimited      Code = "RATE_LIMITED"
	CodeInternal         Code = "INTERNAL"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

// PublicMessage is the reason shown to clients. Internal details are withheld.
func (e *Error) PublicMessage() string {
	if e.Code == CodeInternal {
		return "internal server error"
	}
	return e.Message
}

func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) error       { return New(CodeInvalidArgument, msg) }
func InvalidOperation(msg string) error { return New(CodeInvalidOperation, msg) }
func Unauthenticated(msg string) error  { return New(CodeUnauthenticated, msg) }
func Forbidden(msg string) error        { return New(CodePermissionDenied, msg) }
func NotFound(msg string) error         { return New(CodeNotFound, msg) }
func Conflict(msg string) error         { return New(CodeConflict, msg) }
func RateLimited(msg string) error      { return New(CodeRateLimited, msg) }

// Internal hides the cause from callers; it stays reachable through Unwrap for logging.
func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// As returns the *Error in err's chain, converting anything else into an INTERNAL error.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return &Error{Code: CodeInternal, Message: "internal server error", Cause: err}
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return As(err).Code
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeInvalidArgument, CodeInvalidOperation:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
