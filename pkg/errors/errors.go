// Package errors defines the service's error taxonomy. Every failure a
// caller can act on is an *AppError carrying a stable code, an HTTP status
// and one of the sentinels below, so layers test kinds with errors.Is and
// the transport maps them without knowing where they came from.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel kinds. AppErrors wrap exactly one of them.
var (
	ErrNotFound       = errors.New("resource not found")
	ErrAlreadyExists  = errors.New("resource already exists")
	ErrInvalidInput   = errors.New("invalid input")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("access denied")
	ErrInternal       = errors.New("internal error")
	ErrServiceUnavail = errors.New("service unavailable")
	ErrRateLimited    = errors.New("rate limited")
)

type kind struct {
	sentinel error
	code     string
	status   int
}

// kinds is ordered for HTTPStatus lookups on plain wrapped sentinels.
var kinds = []kind{
	{ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{ErrAlreadyExists, "ALREADY_EXISTS", http.StatusConflict},
	{ErrInvalidInput, "INVALID_INPUT", http.StatusBadRequest},
	{ErrUnauthorized, "UNAUTHORIZED", http.StatusUnauthorized},
	{ErrForbidden, "ACCESS_DENIED", http.StatusForbidden},
	{ErrRateLimited, "RATE_LIMITED", http.StatusTooManyRequests},
	{ErrServiceUnavail, "SERVICE_UNAVAILABLE", http.StatusServiceUnavailable},
	{ErrInternal, "INTERNAL_ERROR", http.StatusInternalServerError},
}

func kindOf(sentinel error) kind {
	for _, k := range kinds {
		if k.sentinel == sentinel {
			return k
		}
	}
	return kinds[len(kinds)-1]
}

// AppError represents a structured application error with HTTP status mapping.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func newAppError(sentinel error, message string) *AppError {
	k := kindOf(sentinel)
	return &AppError{Code: k.code, Message: message, Status: k.status, Err: sentinel}
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

// NotFound reports a missing entity. Promos the caller is not targeted by
// are reported the same way.
func NotFound(resource, id string) *AppError {
	return newAppError(ErrNotFound, fmt.Sprintf("%s with id %s not found", resource, id))
}

// AlreadyExists reports a uniqueness conflict, e.g. a registered email.
func AlreadyExists(resource, field, value string) *AppError {
	return newAppError(ErrAlreadyExists, fmt.Sprintf("%s with %s %q already exists", resource, field, value))
}

// InvalidInput reports request data that breaks a business rule.
func InvalidInput(message string) *AppError {
	return newAppError(ErrInvalidInput, message)
}

// Unauthorized reports a missing, invalid or revoked credential.
func Unauthorized(message string) *AppError {
	return newAppError(ErrUnauthorized, message)
}

// AccessDenied covers ownership mismatches as well as promos that cannot be
// redeemed (inactive, exhausted, rejected by anti-fraud).
func AccessDenied(message string) *AppError {
	return newAppError(ErrForbidden, message)
}

// ServiceUnavailable reports a dependency outage the caller may retry.
func ServiceUnavailable(message string) *AppError {
	return newAppError(ErrServiceUnavail, message)
}

// RateLimited reports a throttled caller.
func RateLimited(message string) *AppError {
	return newAppError(ErrRateLimited, message)
}

// Internal hides err behind a generic message; err is kept for logging.
func Internal(err error) *AppError {
	k := kindOf(ErrInternal)
	return &AppError{Code: k.code, Message: "an internal error occurred", Status: k.status, Err: err}
}

// HTTPStatus maps err to a status code: an AppError's own status, else the
// status of the first sentinel it wraps, else 500.
func HTTPStatus(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Status
	}
	for _, k := range kinds {
		if errors.Is(err, k.sentinel) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// From returns err as an *AppError. A plain wrapped sentinel gets its kind's
// code with a generic message (invalid input keeps the full text, which is
// written for the caller); anything else becomes Internal.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	for _, k := range kinds {
		if k.sentinel == ErrInternal || !errors.Is(err, k.sentinel) {
			continue
		}
		message := k.sentinel.Error()
		if k.sentinel == ErrInvalidInput {
			message = err.Error()
		}
		return &AppError{Code: k.code, Message: message, Status: k.status, Err: err}
	}
	return Internal(err)
}
