package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors shared by the storefront packages. Wrap them (or build an
// AppError around them) so HTTPStatus and Classify can map the failure.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrInvalidInput   = errors.New("invalid input")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrTooManyReqs    = errors.New("too many requests")

	// ErrShareFailed marks a wishlist share that was cancelled or rejected
	// by the platform (native share sheet or clipboard).
	ErrShareFailed = errors.New("share failed")
)

// kind describes how one sentinel is reported to clients.
type kind struct {
	sentinel error
	code     string
	status   int
	message  string
}

var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound, "resource not found"},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest, ""},
	{ErrShareFailed, "SHARE_FAILED", http.StatusUnprocessableEntity, "sharing the wishlist failed"},
	{ErrTooManyReqs, "RATE_LIMITED", http.StatusTooManyRequests, "too many requests"},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable, "service unavailable"},
}

const (
	internalCode    = "INTERNAL_ERROR"
	internalMessage = "an internal error occurred"
)

// AppError is an error with a client-facing code and message.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func newAppError(sentinel error, message string, cause error) *AppError {
	k := lookup(sentinel)
	err := sentinel
	if cause != nil {
		err = fmt.Errorf("%w: %w", sentinel, cause)
	}
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
}

// NotFound reports a missing resource, e.g. NotFound("cart line", id).
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id), nil)
}

// InvalidInput reports a request the caller has to fix.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message, nil)
}

// ShareFailed reports a share attempt the platform rejected. The cause is
// kept so callers can tell a cancelled share sheet from a denied clipboard
// write.
func ShareFailed(message string, cause error) *AppError {
	return newAppError(ErrShareFailed, message, cause)
}

// RateLimited reports a request refused by a limiter.
func RateLimited() *AppError {
	return newAppError(ErrTooManyReqs, "too many requests", nil)
}

// Unavailable reports a dependency or component that cannot serve right now.
func Unavailable(message string) *AppError {
	return newAppError(ErrServiceUnavail, message, nil)
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	return fmt.Errorf("%s: %w", message, err)
}

// Classify returns the status, code and client message for err. AppErrors
// report their own fields; bare sentinels anywhere in the chain use their
// defaults (invalid input echoes the error text); anything else is an
// internal error.
func Classify(err error) (status int, code, message string) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status, appErr.Code, appErr.Message
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			msg := k.message
			if msg == "" {
				msg = err.Error()
			}
			return k.status, k.code, msg
		}
	}
	return http.StatusInternalServerError, internalCode, internalMessage
}

// HTTPStatus returns the HTTP status code for the given error.
func HTTPStatus(err error) int {
	status, _, _ := Classify(err)
	return status
}

func lookup(sentinel error) kind {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return k
		}
	}
	return kind{sentinel: sentinel, code: internalCode, status: http.StatusInternalServerError}
}
