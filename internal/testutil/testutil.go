// Package testutil holds small helpers shared by the HTTP handler tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestRequestWithJSON encodes body as the request payload.
func NewTestRequestWithJSON(t testing.TB, method, path string, body any) *http.Request {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err, "encode request body")
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ParseJSONResponse decodes a JSON object body into a generic map.
func ParseJSONResponse(t testing.TB, body []byte) map[string]any {
	t.Helper()
	return DecodeResponse[map[string]any](t, body)
}

// DecodeResponse decodes body into T, failing the test on malformed JSON.
func DecodeResponse[T any](t testing.TB, body []byte) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(body, &out), "decode response body %s", body)
	return out
}

func AssertStatusCode(t testing.TB, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rr.Code, "unexpected status (body %s)", rr.Body.String())
}
