package util

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassesThrough(t *testing.T) {
	original := NewConflict("ticket already closed", map[string]any{"ticket_id": "t1"})
	converted := ToDomainError(original)
	require.NotNil(t, converted)
	assert.Equal(t, "CONFLICT", converted.Code)
	assert.Equal(t, http.StatusConflict, converted.HTTPStatus)
	assert.Equal(t, "t1", converted.Details["ticket_id"])
}

func TestToDomainErrorUnwrapsWrappedDomainError(t *testing.T) {
	wrapped := fmt.Errorf("load ticket: %w", NewForbidden("not your ticket"))
	converted := ToDomainError(wrapped)
	require.NotNil(t, converted)
	assert.Equal(t, http.StatusForbidden, converted.HTTPStatus)
}

func TestToDomainErrorMapsNoRowsToNotFound(t *testing.T) {
	converted := ToDomainError(fmt.Errorf("get ticket: %w", pgx.ErrNoRows))
	require.NotNil(t, converted)
	assert.Equal(t, "NOT_FOUND", converted.Code)
	assert.Equal(t, http.StatusNotFound, converted.HTTPStatus)
}

func TestToDomainErrorDefaultsToInternal(t *testing.T) {
	converted := ToDomainError(errors.New("connection refused"))
	require.NotNil(t, converted)
	assert.Equal(t, "INTERNAL_ERROR", converted.Code)
	assert.Equal(t, http.StatusInternalServerError, converted.HTTPStatus)
	assert.Equal(t, "internal server error", converted.Message)
}

func TestToDomainErrorNil(t *testing.T) {
	assert.Nil(t, ToDomainError(nil))
	assert.NoError(t, MapError(nil))
}

func TestDomainErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	err := NewInternalError(cause)
	assert.Contains(t, err.Error(), "dial tcp: timeout")
	assert.ErrorIs(t, err, cause)
}
