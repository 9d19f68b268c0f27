package types

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeValidationMissingField, http.StatusBadRequest},
		{ErrCodeAuthTokenMissing, http.StatusUnauthorized},
		{ErrCodeAuthTokenInvalid, http.StatusUnauthorized},
		{ErrCodeNotFoundDeadline, http.StatusNotFound},
		{ErrCodeConflictDedupeKey, http.StatusConflict},
		{ErrCodeEmailBlocked, http.StatusForbidden},
		{ErrCodeUpstreamRateLimited, http.StatusTooManyRequests},
		{ErrCodeUpstreamUnavailable, http.StatusBadGateway},
		{ErrCodeUpstreamEmailProvider, http.StatusBadGateway},
		{ErrCodeInternalDB, http.StatusInternalServerError},
		{ErrorCode("something_unknown"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.code.HTTPStatus())
		})
	}
}

func TestAppErrorUnwrap(t *testing.T) {
	inner := errors.New("connection reset")
	err := NewAppError(ErrCodeInternalDB, "query failed", inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "internal_database_error: query failed", err.Error())
	assert.Equal(t, http.StatusInternalServerError, err.HTTPStatus())
}

func TestAppErrorAsThroughWrapping(t *testing.T) {
	var appErr *AppError
	wrapped := NewAppError(ErrCodeEmailBlocked, "suppressed", nil)

	assert.True(t, errors.As(error(wrapped), &appErr))
	assert.Equal(t, ErrCodeEmailBlocked, appErr.Code)
}
