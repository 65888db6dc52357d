package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		assert.Nil(t, ToDomainError(nil))
	})

	t.Run("wrapped domain error keeps status", func(t *testing.T) {
		err := fmt.Errorf("login: %w", NewBadCredential())
		de := ToDomainError(err)
		require.NotNil(t, de)
		assert.Equal(t, http.StatusUnauthorized, de.HTTPStatus)
		assert.Equal(t, CodeBadCredential, de.Code)
		assert.Equal(t, "Contraseña incorrecta", de.Message)
	})

	t.Run("unknown error becomes opaque internal", func(t *testing.T) {
		cause := errors.New("mongo: connection refused")
		de := ToDomainError(cause)
		require.NotNil(t, de)
		assert.Equal(t, http.StatusInternalServerError, de.HTTPStatus)
		assert.Equal(t, "internal server error", de.Message)
		assert.ErrorIs(t, de, cause)
	})
}

func TestToDomainError_RouterErrors(t *testing.T) {
	tests := []struct {
		err    *fiber.Error
		status int
		code   string
	}{
		{fiber.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{fiber.ErrMethodNotAllowed, http.StatusMethodNotAllowed, CodeMethodNotAllowed},
		{fiber.ErrUnprocessableEntity, http.StatusUnprocessableEntity, CodeValidation},
		{fiber.ErrBadGateway, http.StatusBadGateway, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			de := ToDomainError(fmt.Errorf("route: %w", tt.err))
			require.NotNil(t, de)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.Equal(t, tt.code, de.Code)
			assert.Equal(t, tt.err.Message, de.Message)
		})
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{NewNotRegistered(), http.StatusUnauthorized, CodeNotRegistered},
		{NewInvalidRefreshToken(), http.StatusForbidden, CodeInvalidRefreshToken},
		{NewConflict("username taken", nil), http.StatusConflict, CodeConflict},
		{NewNotFound("session", nil), http.StatusNotFound, CodeNotFound},
		{NewValidationError("bad", nil), http.StatusBadRequest, CodeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			de := ToDomainError(tt.err)
			assert.Equal(t, tt.status, de.HTTPStatus)
			assert.True(t, HasCode(tt.err, tt.code))
		})
	}

	assert.Contains(t, NewNotRegistered().Error(), "no registrado")
}
