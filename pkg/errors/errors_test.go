package errors

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneKeepsCodeAndOverridesMessage(t *testing.T) {
	err := Clone(ErrInvalidState, "bill is already settled")
	assert.Equal(t, "INVALID_STATE", err.Code)
	assert.Equal(t, http.StatusConflict, err.Status)
	assert.Equal(t, "bill is already settled", err.Message)
	assert.Equal(t, "operation not allowed in current state", ErrInvalidState.Message)
	assert.Nil(t, Clone(nil, "x"))
}

func TestFromErrorWrapsUnknownErrors(t *testing.T) {
	assert.Nil(t, FromError(nil))

	raw := errors.New("pq: connection refused")
	appErr := FromError(raw)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, ErrInternal.Message, appErr.Message)
	assert.ErrorIs(t, appErr, raw)

	typed := Clone(ErrNotFound, "bill not found")
	assert.Same(t, typed, FromError(fmt.Errorf("load: %w", typed)))
}

func TestIsMatchesByCode(t *testing.T) {
	wrapped := Wrap(sql.ErrNoRows, ErrNotFound.Code, ErrNotFound.Status, "bill not found")
	assert.True(t, Is(wrapped, ErrNotFound))
	assert.False(t, Is(wrapped, ErrConflict))
	assert.False(t, Is(sql.ErrNoRows, ErrNotFound))
	assert.True(t, errors.Is(wrapped, sql.ErrNoRows))
	assert.Equal(t, "bill not found: sql: no rows in result set", wrapped.Error())
}
