package okapi_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fivetwenty-io/okapi/pkg/okapi"
)

func TestNewStatusError(t *testing.T) {
	t.Parallel()

	t.Run("structured failure body", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"kind":"Status","status":"Failure","message":"pods \"mypod\" not found","reason":"NotFound","details":{"name":"mypod","kind":"pods"},"code":404}`)

		statusErr := okapi.NewStatusError(http.StatusNotFound, body)
		assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
		assert.Equal(t, okapi.ReasonNotFound, statusErr.Reason)
		assert.Equal(t, `pods "mypod" not found`, statusErr.Message)
		require.NotNil(t, statusErr.Details)
		assert.Equal(t, "mypod", statusErr.Details.Name)
		assert.Equal(t, body, statusErr.Body)
	})

	t.Run("body reason overrides code-derived reason", func(t *testing.T) {
		t.Parallel()

		body := []byte(`{"status":"Failure","reason":"Invalid","message":"spec is immutable"}`)

		statusErr := okapi.NewStatusError(http.StatusConflict, body)
		assert.Equal(t, okapi.ReasonInvalid, statusErr.Reason)
		assert.Equal(t, "spec is immutable", statusErr.Message)
	})

	t.Run("plain text body", func(t *testing.T) {
		t.Parallel()

		statusErr := okapi.NewStatusError(http.StatusInternalServerError, []byte("boom\n"))
		assert.Equal(t, okapi.ReasonServerError, statusErr.Reason)
		assert.Equal(t, "boom", statusErr.Message)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()

		statusErr := okapi.NewStatusError(http.StatusUnauthorized, nil)
		assert.Equal(t, okapi.ReasonUnauthorized, statusErr.Reason)
		assert.Empty(t, statusErr.Message)
		assert.Equal(t, "Unauthorized (HTTP 401)", statusErr.Error())
	})
}

func TestStatusErrorReasons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		code int
		want okapi.StatusReason
	}{
		{http.StatusBadRequest, okapi.ReasonBadRequest},
		{http.StatusUnauthorized, okapi.ReasonUnauthorized},
		{http.StatusForbidden, okapi.ReasonForbidden},
		{http.StatusNotFound, okapi.ReasonNotFound},
		{http.StatusConflict, okapi.ReasonConflict},
		{http.StatusUnprocessableEntity, okapi.ReasonInvalid},
		{http.StatusRequestTimeout, okapi.ReasonTimeout},
		{http.StatusGatewayTimeout, okapi.ReasonTimeout},
		{http.StatusInternalServerError, okapi.ReasonServerError},
		{http.StatusBadGateway, okapi.ReasonServerError},
		{http.StatusTeapot, okapi.ReasonUnknown},
	}

	for _, tt := range tests {
		statusErr := okapi.NewStatusError(tt.code, nil)
		assert.Equal(t, tt.want, statusErr.Reason, "code %d", tt.code)
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	notFound := okapi.NewStatusError(http.StatusNotFound, nil)
	unauthorized := okapi.NewStatusError(http.StatusUnauthorized, nil)
	forbidden := okapi.NewStatusError(http.StatusForbidden, nil)
	conflict := okapi.NewStatusError(http.StatusConflict, nil)
	serverErr := okapi.NewStatusError(http.StatusBadGateway, nil)

	assert.True(t, okapi.IsNotFound(notFound))
	assert.False(t, okapi.IsNotFound(unauthorized))

	assert.True(t, okapi.IsUnauthorized(unauthorized))
	assert.True(t, okapi.IsForbidden(forbidden))
	assert.True(t, okapi.IsConflict(conflict))
	assert.True(t, okapi.IsServerError(serverErr))
	assert.False(t, okapi.IsServerError(notFound))

	// Predicates unwrap.
	wrapped := fmt.Errorf("getting pod: %w", notFound)
	assert.True(t, okapi.IsNotFound(wrapped))

	// Non-status errors never match.
	assert.False(t, okapi.IsNotFound(okapi.ErrUnknownResource))
	assert.False(t, okapi.IsNotFound(nil))
}

func TestParameterError(t *testing.T) {
	t.Parallel()

	err := &okapi.ParameterError{Param: "name"}
	assert.Equal(t, `parameter "name" is required`, err.Error())

	err = &okapi.ParameterError{Param: "replicas", Detail: "must be non-negative"}
	assert.Equal(t, `parameter "replicas": must be non-negative`, err.Error())
}

func TestVersionError(t *testing.T) {
	t.Parallel()

	err := &okapi.VersionError{Version: "v9", Valid: []string{"v1beta3", "v1"}}
	assert.Equal(t, `unknown API version "v9" (valid: v1beta3, v1)`, err.Error())
}

func TestTokenParseError(t *testing.T) {
	t.Parallel()

	err := &okapi.TokenParseError{}
	assert.Equal(t, "unable to parse token from authentication response", err.Error())

	err = &okapi.TokenParseError{Detail: "no access_token fragment"}
	assert.Contains(t, err.Error(), "no access_token fragment")
}

func TestMaskSecret(t *testing.T) {
	t.Parallel()

	assert.Empty(t, okapi.MaskSecret(""))
	assert.Equal(t, "***", okapi.MaskSecret("sha256~abcdef"))
	assert.NotContains(t, okapi.MaskSecret("hunter2"), "hunter2")
}
