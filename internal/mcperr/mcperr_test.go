package mcperr

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCodeMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{NotFound("missing"), http.StatusNotFound},
		{Connect(nil, "unreachable"), http.StatusServiceUnavailable},
		{Transport(nil, "eof"), http.StatusServiceUnavailable},
		{Timeout("slow"), http.StatusGatewayTimeout},
		{Validation("bad input"), http.StatusUnprocessableEntity},
		{Conflict("dup"), http.StatusConflict},
		{Internal(nil, "broken"), http.StatusInternalServerError},
		{Protocol(-32601, "method not found"), http.StatusInternalServerError},
		{errors.New("not ours"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.status, StatusCode(tc.err), "for %v", tc.err)
	}
}

func TestIsAndAs(t *testing.T) {
	err := NotFound("server %s not found", "abc")
	assert.True(t, Is(err, KindNotFound))
	assert.False(t, Is(err, KindConflict))

	wrapped := Internal(err, "wrapping")
	e, ok := As(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindInternal, e.Kind)
	assert.ErrorIs(t, wrapped, err)
}

func TestProtocolCarriesCode(t *testing.T) {
	err := Protocol(-32602, "invalid params")
	e, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, -32602, e.Code)
	assert.Contains(t, err.Error(), "invalid params")
}
