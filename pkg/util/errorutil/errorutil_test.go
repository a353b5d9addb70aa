package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesByCode(t *testing.T) {
	err := NewConflict("report already accepted", map[string]any{"report_id": "r1"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NotErrorIs(t, err, ErrInvalidTransition)

	wrapped := fmt.Errorf("accept: %w", NewInvalidTransition("completed", "accepted", nil))
	assert.ErrorIs(t, wrapped, ErrInvalidTransition)

	assert.ErrorIs(t, NewPermissionDenied("not assignee", nil), ErrPermissionDenied)
	assert.ErrorIs(t, NewNotFound("report", nil), ErrNotFound)
}

func TestNewInvalidTransition_RecordsStates(t *testing.T) {
	var domainErr *DomainError
	assert.ErrorAs(t, NewInvalidTransition("pending", "in_progress", nil), &domainErr)
	assert.Equal(t, "pending", domainErr.Details["from"])
	assert.Equal(t, "in_progress", domainErr.Details["to"])
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
}

func TestToDomainError(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))

	cause := errors.New("connection reset")
	internal := ToDomainError(cause)
	assert.Equal(t, CodeInternal, internal.Code)
	assert.Equal(t, http.StatusInternalServerError, internal.HTTPStatus)
	assert.ErrorIs(t, internal, cause)

	original := NewDomainError(CodeValidation, "bad", http.StatusBadRequest, nil)
	assert.Same(t, original, ToDomainError(fmt.Errorf("wrap: %w", original)))
}

func TestCodeForStatus(t *testing.T) {
	assert.Equal(t, CodeNotFound, CodeForStatus(http.StatusNotFound))
	assert.Equal(t, CodeUnauthorized, CodeForStatus(http.StatusUnauthorized))
	assert.Equal(t, CodeValidation, CodeForStatus(http.StatusBadRequest))
	assert.Equal(t, CodeInternal, CodeForStatus(http.StatusTeapot))
}
