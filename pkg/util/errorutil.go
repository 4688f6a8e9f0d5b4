package util

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewForbidden(message string) error {
	return NewDomainError("FORBIDDEN", message, http.StatusForbidden, nil)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

// NewInvalidState rejects a lifecycle transition the state machine does not
// permit from the request's current state.
func NewInvalidState(message string, details map[string]any) error {
	return NewDomainError("INVALID_STATE", message, http.StatusConflict, details)
}

// NewTransitionNotAllowed rejects operations outside this version of the
// lifecycle entirely, such as re-opening a completed request.
func NewTransitionNotAllowed(message string) error {
	return NewDomainError("TRANSITION_NOT_ALLOWED", message, http.StatusConflict, nil)
}

// NewPolicyNotConfigured signals a missing active SLA policy. Inventing a
// deadline would break the commitment made to the tenant, so configuration
// gaps fail loudly instead of defaulting.
func NewPolicyNotConfigured(priority string, propertyID *string) error {
	details := map[string]any{"priority": priority}
	if propertyID != nil {
		details["property_id"] = *propertyID
	}
	return NewDomainError("POLICY_NOT_CONFIGURED", "no active SLA policy configured", http.StatusInternalServerError, details)
}

func NewAlreadySigned(requestID string) error {
	return NewDomainError("ALREADY_SIGNED", "completion already signed off", http.StatusConflict, map[string]any{"request_id": requestID})
}

// NewBusy reports per-request lock contention. Retryable by the caller.
func NewBusy(requestID string) error {
	return NewDomainError("BUSY", "request is busy, retry shortly", http.StatusServiceUnavailable, map[string]any{"request_id": requestID})
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, sql.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func MapError(err error) error {
	return ToDomainError(err)
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
