package connectors

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func response(code int, body string) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCheckResponse(t *testing.T) {
	assert.NoError(t, CheckResponse("woocommerce", response(200, "{}")))
	assert.NoError(t, CheckResponse("woocommerce", response(201, "{}")))

	err := CheckResponse("woocommerce", response(404, `{"code":"not_found"}`))
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "API request failed: 404")

	wrapped := fmt.Errorf("get order: %w", CheckResponse("prokip", response(401, "denied")))
	assert.True(t, IsUnauthorized(wrapped))
	assert.False(t, IsNotFound(wrapped))
}
