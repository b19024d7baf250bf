package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for the failure classes the services distinguish.
// Handlers map these to status codes and user-facing messages without
// leaking store-level detail.
var (
	ErrNotAuthenticated    = errors.New("not signed in")
	ErrNotFound            = errors.New("not found")
	ErrPeerNotFound        = errors.New("user not found by email")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrTransient           = errors.New("temporary failure, try again")
	ErrRecentLoginRequired = errors.New("recent login required")
	ErrMutationPending     = errors.New("mutation already pending for entity")
	ErrWrongPassword       = errors.New("bad credentials")
)

// default error is internal service error at handler level
// if error has different status code use ErrorWithStatusCode
type ErrorWithStatusCode struct {
	Message    string
	StatusCode int
}

func (e *ErrorWithStatusCode) Error() string {
	return e.Message
}

// MultiFactorRequired is raised during sign-in when the account has an
// enrolled second factor. The caller resumes via the challenge id.
type MultiFactorRequired struct {
	ChallengeId string
}

func (e *MultiFactorRequired) Error() string {
	return "multi-factor authentication required"
}

type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("Validation error: %s", e.Message)
}

// Check if err is instance of T for custom error types
func Is[T error](err error) bool {
	var target T
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StatusCode picks the HTTP status for an error, defaulting to 500.
func StatusCode(err error) int {
	var withStatus *ErrorWithStatusCode
	if errors.As(err, &withStatus) {
		return withStatus.StatusCode
	}
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, ErrWrongPassword), errors.Is(err, ErrRecentLoginRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrPeerNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrMutationPending):
		return http.StatusConflict
	case errors.Is(err, ErrTransient):
		return http.StatusServiceUnavailable
	case Is[*ValidationError](err):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
