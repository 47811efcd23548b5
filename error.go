package idedocs

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Application error codes.
const (
	ECONFLICT    = "conflict"
	EINTERNAL    = "internal"
	EINVALID     = "invalid"
	ENOTFOUND    = "not_found"
	ECONFIG      = "config"
	EUNAVAILABLE = "unavailable"
	ERATELIMIT   = "rate_limit"
)

// Error represents an application-specific error. Application errors can be
// unwrapped by the caller to extract the code and message.
//
// Any non-application error (such as a disk error) should be reported as an
// EINTERNAL error and the human user should only see "Internal error" as the
// message. These low-level internal error details should only be logged and
// reported to the operator of the application (not the end user).
type Error struct {
	// Machine-readable error code.
	Code string

	// Human-readable error message.
	Message string

	// RetryAfter is a provider-supplied hint for ERATELIMIT errors.
	RetryAfter time.Duration
}

// Error implements the error interface. Not used by the application otherwise.
func (e *Error) Error() string {
	return fmt.Sprintf("idedocs error: code=%s message=%s", e.Code, e.Message)
}

// ErrorCode unwraps an application error and returns its code.
// Non-application errors always return EINTERNAL.
func ErrorCode(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Code
	}
	return EINTERNAL
}

// ErrorMessage unwraps an application error and returns its message.
// Non-application errors always return "Internal error".
func ErrorMessage(err error) string {
	var e *Error
	if err == nil {
		return ""
	} else if errors.As(err, &e) {
		return e.Message
	}
	return "Internal error."
}

// RetryAfterHint returns the retry hint attached to an application error, or zero.
func RetryAfterHint(err error) time.Duration {
	var e *Error
	if errors.As(err, &e) {
		return e.RetryAfter
	}
	return 0
}

// Errorf is a helper function to return an Error with a given code and formatted message.
func Errorf(code string, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// RateLimited returns an ERATELIMIT error carrying the provider's retry hint.
func RateLimited(retryAfter time.Duration, format string, args ...any) *Error {
	e := Errorf(ERATELIMIT, format, args...)
	e.RetryAfter = retryAfter
	return e
}

// IsRetryable reports whether an operation that failed with err may succeed
// if attempted again. Configuration, validation, not-found and conflict errors
// are permanent, as is context cancellation. Errors without an application
// code are treated as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Code {
	case ECONFIG, EINVALID, ENOTFOUND, ECONFLICT:
		return false
	}
	return true
}

// StatusError maps an HTTP status returned by an external provider to an
// application error: 401/403 are configuration errors, 429 is rate limiting,
// 404 is not found, 408 and 5xx are transient and other 4xx are invalid
// requests.
func StatusError(status int, retryAfter time.Duration, format string, args ...any) *Error {
	switch {
	case status == 401 || status == 403:
		return Errorf(ECONFIG, format, args...)
	case status == 429:
		return RateLimited(retryAfter, format, args...)
	case status == 404:
		return Errorf(ENOTFOUND, format, args...)
	case status == 408 || status >= 500:
		return Errorf(EUNAVAILABLE, format, args...)
	case status >= 400:
		return Errorf(EINVALID, format, args...)
	}
	return Errorf(EINTERNAL, format, args...)
}
