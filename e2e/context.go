package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	defaultBaseURL    = "http://localhost:8080"
	defaultSigningKey = "dev-secret-key-change-in-production"
)

// TestContext holds per-scenario state against a running server.
type TestContext struct {
	baseURL    string
	signingKey string
	client     *http.Client

	// clientIP isolates each scenario's rate-limit budget and pan its
	// identity-reuse history.
	clientIP string
	pan      string

	sessionID   string
	resumeToken string
	bearer      string
	values      map[string]string

	lastStatus  int
	lastBody    []byte
	lastHeaders http.Header
}

func NewTestContext() *TestContext {
	return &TestContext{
		baseURL:    envOr("E2E_BASE_URL", defaultBaseURL),
		signingKey: envOr("E2E_JWT_SIGNING_KEY", defaultSigningKey),
		client:     &http.Client{Timeout: 10 * time.Second},
		clientIP:   fmt.Sprintf("198.18.%d.%d", rand.IntN(256), rand.IntN(254)+1),
		pan:        randomPAN(),
		values:     map[string]string{},
	}
}

// randomPAN returns a well-formed individual PAN the simulated registry knows.
func randomPAN() string {
	letter := func() byte { return byte('A' + rand.IntN(26)) }
	return fmt.Sprintf("%c%c%cP%c%04d%c", letter(), letter(), letter(), letter(), rand.IntN(10000), letter())
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func (tc *TestContext) POST(path string, body any) error {
	return tc.do(http.MethodPost, path, body, nil)
}

func (tc *TestContext) GET(path string, headers map[string]string) error {
	return tc.do(http.MethodGet, path, nil, headers)
}

func (tc *TestContext) do(method, path string, body any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, tc.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", tc.clientIP)
	if tc.sessionID != "" {
		req.Header.Set("Session-Id", tc.sessionID)
	}
	if tc.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+tc.bearer)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastHeaders = resp.Header
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

// GetResponseField reads a top-level field of the last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := body[field]
	if !ok {
		return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
	}
	return v, nil
}

func (tc *TestContext) GetLastResponseStatus() int            { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte           { return tc.lastBody }
func (tc *TestContext) GetLastResponseHeader(k string) string { return tc.lastHeaders.Get(k) }

func (tc *TestContext) GetSessionID() string          { return tc.sessionID }
func (tc *TestContext) SetSessionID(sessionID string) { tc.sessionID = sessionID }
func (tc *TestContext) GetResumeToken() string        { return tc.resumeToken }
func (tc *TestContext) SetResumeToken(token string)   { tc.resumeToken = token }

// Remember stores a value captured from one response for a later step.
func (tc *TestContext) Remember(key, value string) { tc.values[key] = value }
func (tc *TestContext) Recall(key string) string   { return tc.values[key] }

func (tc *TestContext) PAN() string { return tc.pan }

func (tc *TestContext) SetBearer(token string) { tc.bearer = token }

// MintToken signs a token the way cmd/regulator-token does.
func (tc *TestContext) MintToken(subject, role string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iss":  envOr("E2E_JWT_ISSUER", "onboard"),
		"aud":  []string{"onboard-admin"},
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
		"jti":  fmt.Sprintf("e2e-%d", now.UnixNano()),
	})
	return token.SignedString([]byte(tc.signingKey))
}
