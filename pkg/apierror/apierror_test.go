package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAPIErrorFormatting(t *testing.T) {
	t.Parallel()

	t.Run("code and message", func(t *testing.T) {
		err := New("FORBIDDEN", "access denied", "", http.StatusForbidden)
		require.Equal(t, "FORBIDDEN: access denied", err.Error())
	})

	t.Run("details are appended", func(t *testing.T) {
		err := NotFound("stop", "BS-001")
		require.Equal(t, "NOT_FOUND: stop not found (BS-001)", err.Error())
		require.Equal(t, http.StatusNotFound, err.HTTPStatus)
	})

	t.Run("validation fields are sorted", func(t *testing.T) {
		err := Validation(map[string]string{"password": "too short", "email": "required"})
		require.Equal(t, http.StatusUnprocessableEntity, err.HTTPStatus)
		require.Equal(t, "VALIDATION_ERROR: request validation failed [email: required; password: too short]", err.Error())
	})

	t.Run("retry hint does not mutate the original", func(t *testing.T) {
		base := New("LOCKED", "locked", "", http.StatusTooManyRequests)
		hinted := base.WithRetryAfter(30)
		require.Equal(t, 30, hinted.RetryAfter)
		require.Zero(t, base.RetryAfter)
	})

	t.Run("unwraps through fmt wrapping", func(t *testing.T) {
		wrapped := fmt.Errorf("update stop: %w", Conflict("duplicate", "stop_code"))
		var apiErr *APIError
		require.True(t, errors.As(wrapped, &apiErr))
		require.Equal(t, "CONFLICT", apiErr.Code)
	})
}
