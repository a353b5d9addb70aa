package errorutil

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes shared by the service and HTTP layers.
const (
	CodeValidation        = "VALIDATION_FAILED"
	CodeNotFound          = "NOT_FOUND"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeConflict          = "CONFLICT"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeInvalidCoordinate = "INVALID_COORDINATE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels for errors.Is checks. Matching is by Code only.
var (
	ErrNotFound          = &DomainError{Code: CodeNotFound, Message: "not found", HTTPStatus: http.StatusNotFound}
	ErrPermissionDenied  = &DomainError{Code: CodeForbidden, Message: "permission denied", HTTPStatus: http.StatusForbidden}
	ErrConflict          = &DomainError{Code: CodeConflict, Message: "conflict", HTTPStatus: http.StatusConflict}
	ErrInvalidTransition = &DomainError{Code: CodeInvalidTransition, Message: "invalid transition", HTTPStatus: http.StatusConflict}
	ErrInvalidCoordinate = &DomainError{Code: CodeInvalidCoordinate, Message: "invalid coordinate", HTTPStatus: http.StatusBadRequest}
	ErrValidation        = &DomainError{Code: CodeValidation, Message: "validation failed", HTTPStatus: http.StatusBadRequest}
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

// Is reports whether target is a DomainError carrying the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError(CodeValidation, message, http.StatusBadRequest, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewUnauthorized(message string) error {
	return NewDomainError(CodeUnauthorized, message, http.StatusUnauthorized, nil)
}

// NewForbidden covers both role checks and caller-is-not-assignee checks.
func NewForbidden(message string) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, nil)
}

// NewPermissionDenied is NewForbidden with details attached.
func NewPermissionDenied(message string, details map[string]any) error {
	return NewDomainError(CodeForbidden, message, http.StatusForbidden, details)
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError(CodeConflict, message, http.StatusConflict, details)
}

func NewInvalidTransition(from, to string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	details["from"] = from
	details["to"] = to
	return NewDomainError(CodeInvalidTransition,
		fmt.Sprintf("cannot move report from %s to %s", from, to),
		http.StatusConflict, details)
}

func NewInvalidCoordinate(message string, details map[string]any) error {
	return NewDomainError(CodeInvalidCoordinate, message, http.StatusBadRequest, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       CodeInternal,
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
	return &DomainError{
		Code:       CodeInternal,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// CodeForStatus picks the error code matching a bare HTTP status.
func CodeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeValidation
	case http.StatusUnauthorized:
		return CodeUnauthorized
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	case http.StatusConflict:
		return CodeConflict
	default:
		return CodeInternal
	}
}
