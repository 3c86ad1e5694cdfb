// Package testutil drives the composed routers in tests and builds the
// request-scoped contexts services expect.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// APIClient sends requests straight to a handler, attaching the session and
// bearer token it currently holds.
type APIClient struct {
	t         *testing.T
	handler   http.Handler
	SessionID string
	Bearer    string
	Header    http.Header
}

func NewAPIClient(t *testing.T, handler http.Handler) *APIClient {
	return &APIClient{t: t, handler: handler, Header: http.Header{}}
}

// Get sends a bodiless GET.
func (c *APIClient) Get(path string) *Response {
	return c.Do(http.MethodGet, path, nil)
}

// Post sends body as JSON. A nil body sends no body at all.
func (c *APIClient) Post(path string, body any) *Response {
	return c.Do(http.MethodPost, path, body)
}

func (c *APIClient) Do(method, path string, body any) *Response {
	c.t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err, "marshal request body")
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range c.Header {
		req.Header[k] = v
	}
	if c.SessionID != "" {
		req.Header.Set("Session-Id", c.SessionID)
	}
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	return &Response{t: c.t, Recorder: rr}
}

// Response wraps a recorded response. The body can be inspected any number
// of times.
type Response struct {
	t        *testing.T
	Recorder *httptest.ResponseRecorder
}

func (r *Response) Code() int { return r.Recorder.Code }

func (r *Response) HeaderValue(key string) string { return r.Recorder.Header().Get(key) }

// RequireStatus stops the test when the status differs, printing the body.
func (r *Response) RequireStatus(want int) *Response {
	r.t.Helper()
	require.Equal(r.t, want, r.Recorder.Code, "body: %s", r.Recorder.Body.String())
	return r
}

// Field returns a top-level JSON field, or nil when absent.
func (r *Response) Field(key string) any {
	r.t.Helper()
	return Decode[map[string]any](r)[key]
}

// AssertError checks the status and the error code of an error body.
func (r *Response) AssertError(status int, code string) {
	r.t.Helper()
	assert.Equal(r.t, status, r.Recorder.Code)
	assert.Equal(r.t, code, r.Field("error"))
}

// Decode unmarshals the body into T.
func Decode[T any](r *Response) T {
	r.t.Helper()
	var out T
	require.NoError(r.t, json.Unmarshal(r.Recorder.Body.Bytes(), &out), "decode body: %s", r.Recorder.Body.String())
	return out
}
