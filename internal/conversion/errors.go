package conversion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorType is the stable discriminant carried by every error response so
// downstream tooling can branch without string-matching free text.
type ErrorType string

const (
	TypeInvalidIdentity       ErrorType = "INVALID_IDENTITY"
	TypeInvalidInput          ErrorType = "INVALID_INPUT"
	TypeConfigError           ErrorType = "CONFIG_ERROR"
	TypeInsufficientBalance   ErrorType = "INSUFFICIENT_BALANCE"
	TypeInsufficientInventory ErrorType = "INSUFFICIENT_OPERATOR_INVENTORY"
	TypeRateLimited           ErrorType = "RATE_LIMITED"
	TypePolicyBlocked         ErrorType = "POLICY_BLOCKED"
	TypeUpstreamError         ErrorType = "UPSTREAM_ERROR"
)

// Error is a typed failure surfaced to callers. UpstreamStatus is only set
// for TypeUpstreamError, where it feeds the caller's fallback classifier.
type Error struct {
	Type           ErrorType
	Message        string
	UpstreamStatus int
	cause          error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// HTTPStatus maps the error type to the response status the HTTP surface
// must emit.
func (e *Error) HTTPStatus() int {
	switch e.Type {
	case TypeInvalidIdentity, TypeInvalidInput, TypeInsufficientBalance:
		return http.StatusBadRequest
	case TypeInsufficientInventory:
		return http.StatusConflict
	case TypeRateLimited:
		return http.StatusTooManyRequests
	case TypePolicyBlocked:
		return http.StatusForbidden
	case TypeUpstreamError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// NewError builds a typed error wrapping cause (which may be nil).
func NewError(t ErrorType, cause error, format string, args ...any) *Error {
	return &Error{Type: t, Message: fmt.Sprintf(format, args...), cause: cause}
}

// AsError extracts a typed error from an error chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}
