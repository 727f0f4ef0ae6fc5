package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorType string

const (
	ErrInvalidRequest   ErrorType = "INVALID_REQUEST"
	ErrAuthFailed       ErrorType = "AUTH_FAILED"
	ErrNotFound         ErrorType = "NOT_FOUND"
	ErrConflict         ErrorType = "CONFLICT"
	ErrNotReady         ErrorType = "NOT_READY"
	ErrReadOnly         ErrorType = "READ_ONLY"
	ErrRateLimited      ErrorType = "RATE_LIMITED"
	ErrUpstreamRejected ErrorType = "UPSTREAM_REJECTED"
	ErrUpstream         ErrorType = "UPSTREAM_ERROR"
	ErrNetwork          ErrorType = "NETWORK_ERROR"
	ErrChain            ErrorType = "CHAIN_ERROR"
	ErrInternal         ErrorType = "INTERNAL_ERROR"
)

// AppError is the standard error struct for the application
type AppError struct {
	Type       ErrorType `json:"code"`
	Message    string    `json:"message"`
	Suggestion string    `json:"suggestion,omitempty"`
	HTTPStatus int       `json:"-"`
	Cause      error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether repeating the same call may succeed.
func (e *AppError) Retryable() bool {
	switch e.Type {
	case ErrUpstream, ErrNetwork, ErrChain:
		return true
	default:
		return false
	}
}

func New(errType ErrorType, msg string, cause error) *AppError {
	return &AppError{
		Type:       errType,
		Message:    msg,
		Cause:      cause,
		HTTPStatus: mapTypeToStatus(errType),
		Suggestion: mapTypeToSuggestion(errType),
	}
}

func NewInvalidRequest(msg string) *AppError {
	return New(ErrInvalidRequest, msg, nil)
}

func NewNotReady(msg string) *AppError {
	return New(ErrNotReady, msg, nil)
}

// FromStatus classifies a non-2xx upstream response.
func FromStatus(status int, msg string) *AppError {
	if status >= 400 && status < 500 {
		appErr := New(ErrUpstreamRejected, msg, nil)
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			appErr.Type = ErrAuthFailed
			appErr.Suggestion = mapTypeToSuggestion(ErrAuthFailed)
		}
		appErr.HTTPStatus = status
		return appErr
	}
	return New(ErrUpstream, msg, nil)
}

func Wrap(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return New(ErrInternal, err.Error(), err)
}

// Is reports whether err carries an AppError of the given type.
func Is(err error, t ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == t
	}
	return false
}

// IsRetryable reports whether err is an AppError worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}

func mapTypeToStatus(t ErrorType) int {
	switch t {
	case ErrInvalidRequest, ErrUpstreamRejected:
		return http.StatusBadRequest
	case ErrAuthFailed:
		return http.StatusUnauthorized
	case ErrNotFound:
		return http.StatusNotFound
	case ErrConflict:
		return http.StatusConflict
	case ErrNotReady:
		return http.StatusServiceUnavailable
	case ErrReadOnly:
		return http.StatusForbidden
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUpstream, ErrNetwork, ErrChain:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func mapTypeToSuggestion(t ErrorType) string {
	switch t {
	case ErrAuthFailed:
		return "Check the signing account and signature."
	case ErrConflict:
		return "Wait for the previous request on this token to finish."
	case ErrNotReady:
		return "Marketplace settings are still loading, retry shortly."
	case ErrRateLimited:
		return "Slow down."
	case ErrUpstream, ErrNetwork:
		return "Retry the request."
	default:
		return ""
	}
}
