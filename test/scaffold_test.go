package test

import (
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/account"
	adminhandler "onboard/internal/admin/handler"
	adminservice "onboard/internal/admin/service"
	agenthandler "onboard/internal/agent/handler"
	"onboard/internal/audit"
	auditstore "onboard/internal/audit/store"
	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/onboarding/handler"
	"onboard/internal/onboarding/service"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/httpserver"
	rlmiddleware "onboard/internal/ratelimit/middleware"
	rlmodels "onboard/internal/ratelimit/models"
	rlservice "onboard/internal/ratelimit/service"
	rlstore "onboard/internal/ratelimit/store"
	"onboard/internal/risk"
	"onboard/internal/signature"
	"onboard/pkg/platform/middleware/admin"
	"onboard/pkg/testutil"
)

const signingKey = "scaffold-signing-key-0123456789abcdef"

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sessions := store.NewInMemorySessionStore()
	verifications := store.NewInMemoryVerificationStore()
	chain, err := audit.New(auditstore.NewInMemoryStore(), audit.WithLogger(logger))
	require.NoError(t, err)
	generator, err := account.NewGenerator("1100")
	require.NoError(t, err)

	cfg := service.DefaultConfig()
	cfg.DemoProofs = true
	onboarding, err := service.New(service.Stores{
		Sessions:      sessions,
		Verifications: verifications,
		Payments:      store.NewInMemoryPaymentStore(),
		Consents:      store.NewInMemoryConsentStore(),
		Signatures:    signature.NewInMemoryStore(time.Minute),
	}, chain, risk.NewEngine(risk.DefaultConfig(), risk.WithHistory(verifications)), generator,
		service.NewShardedTx(0), service.WithLogger(logger), service.WithConfig(cfg))
	require.NoError(t, err)

	limiter, err := rlservice.New(rlstore.NewInMemoryStore(), rlmodels.Limit{Requests: 5, Window: time.Minute})
	require.NoError(t, err)

	regulator, err := adminservice.New(sessions, chain, adminservice.WithLogger(logger))
	require.NoError(t, err)
	jwt := jwttoken.NewJWTService(signingKey, "onboard", jwttoken.AdminAudience)

	return httpserver.NewRouter(nil,
		handler.New(onboarding, logger, nil, handler.WithRateLimiter(rlmiddleware.New(limiter, logger))),
		adminhandler.New(regulator, jwt.Validator(), logger, nil),
		agenthandler.New(onboarding, regulator, jwt, jwt.Validator(), logger, nil),
	)
}

func regulatorToken(t *testing.T) string {
	t.Helper()
	token, err := jwttoken.NewJWTService(signingKey, "onboard", jwttoken.AdminAudience).
		GenerateAccessToken("pfrda-officer-1", admin.RoleRegulator, time.Hour)
	require.NoError(t, err)
	return token
}

type startResponse struct {
	SessionID   string `json:"session_id"`
	ResumeToken string `json:"resume_token"`
	Status      string `json:"status"`
}

const pan = "ABCPE1234F"

func TestSubscriberJourney(t *testing.T) {
	router := newRouter(t)
	subscriber := testutil.NewAPIClient(t, router)

	started := testutil.Decode[startResponse](subscriber.Post("/api/session/start", map[string]any{"language": "en"}).
		RequireStatus(http.StatusCreated))
	subscriber.SessionID = started.SessionID

	rr := subscriber.Post("/api/session/update", map[string]any{
		"fields": map[string]any{
			"age": 34, "pep": "no", "tax_resident": "no",
			"contribution_amount": 5000, "tier": "I", "pan": pan,
		},
		"advance": true,
	}).RequireStatus(http.StatusOK)
	assert.Equal(t, "Standard", rr.Field("risk_level"))

	rr = subscriber.Post("/api/kyc/verify", map[string]any{"method": "ckyc", "pan": pan}).RequireStatus(http.StatusOK)
	assert.Equal(t, "4", rr.HeaderValue("X-RateLimit-Remaining"))

	esign := testutil.Decode[struct {
		Reference string `json:"reference"`
		DemoProof string `json:"demo_proof"`
	}](subscriber.Post("/api/esign/initiate", map[string]any{"method": "aadhaar"}).RequireStatus(http.StatusOK))
	require.NotEmpty(t, esign.DemoProof)

	subscriber.Post("/api/esign/verify", map[string]any{"reference": esign.Reference, "proof": esign.DemoProof}).
		RequireStatus(http.StatusOK)

	paymentID := subscriber.Post("/api/payment/initiate", map[string]any{"method": "upi", "amount": 1000, "vpa": "subscriber@okbank"}).
		RequireStatus(http.StatusCreated).Field("payment_id")
	subscriber.Post("/api/payment/confirm/"+paymentID.(string), nil).RequireStatus(http.StatusOK)

	issued := subscriber.Post("/api/payment/generate-pran", nil).RequireStatus(http.StatusOK).Field("pran")

	t.Run("session completes with a valid account number", func(t *testing.T) {
		require.IsType(t, "", issued)
		assert.True(t, account.Validate(issued.(string)))
		assert.Equal(t, "completed", subscriber.Get("/api/session/status").Field("status"))
	})

	t.Run("regulator sees an intact chain", func(t *testing.T) {
		regulator := testutil.NewAPIClient(t, router)
		regulator.Bearer = regulatorToken(t)

		result := testutil.Decode[struct {
			Valid        bool `json:"valid"`
			TotalEntries int  `json:"total_entries"`
		}](regulator.Get("/api/admin/audit/" + started.SessionID + "/verify").RequireStatus(http.StatusOK))
		assert.True(t, result.Valid)
		assert.Equal(t, 8, result.TotalEntries)
	})

	t.Run("resume token returns the same session", func(t *testing.T) {
		anonymous := testutil.NewAPIClient(t, router)
		rr := anonymous.Post("/api/session/resume", map[string]any{"resume_token": started.ResumeToken}).
			RequireStatus(http.StatusOK)
		assert.Equal(t, started.SessionID, rr.Field("session_id"))
	})
}

func TestRouterGuards(t *testing.T) {
	router := newRouter(t)
	client := testutil.NewAPIClient(t, router)

	t.Run("subscriber call without a session header", func(t *testing.T) {
		client.Get("/api/session/status").AssertError(http.StatusBadRequest, "bad_request")
	})

	t.Run("regulator API without a token", func(t *testing.T) {
		client.Get("/api/admin/dashboard").AssertError(http.StatusUnauthorized, "unauthorized")
	})

	t.Run("verification past the per-client budget", func(t *testing.T) {
		subscriber := testutil.NewAPIClient(t, router)
		subscriber.SessionID = testutil.Decode[startResponse](subscriber.Post("/api/session/start", nil)).SessionID

		var last *testutil.Response
		for i := 0; i < 6; i++ {
			last = subscriber.Post("/api/kyc/verify", map[string]any{"method": "ckyc", "pan": pan})
		}
		last.AssertError(http.StatusTooManyRequests, "rate_limited")
		assert.NotEmpty(t, last.HeaderValue("Retry-After"))
	})

	t.Run("health", func(t *testing.T) {
		rr := client.Get("/health").RequireStatus(http.StatusOK)
		assert.Equal(t, "ok", rr.Field("status"))
	})
}

func TestAssistedOnboarding(t *testing.T) {
	router := newRouter(t)

	subscriber := testutil.NewAPIClient(t, router)
	started := testutil.Decode[startResponse](subscriber.Post("/api/session/start", nil).RequireStatus(http.StatusCreated))

	agent := testutil.NewAPIClient(t, router)
	agent.Post("/api/pop/login", map[string]any{"agent_id": "SBI-2024-001", "pin": "0000"}).
		AssertError(http.StatusUnauthorized, "unauthorized")

	login := agent.Post("/api/pop/login", map[string]any{"agent_id": "sbi-2024-001", "pin": "1234"}).
		RequireStatus(http.StatusOK)
	token, ok := login.Field("access_token").(string)
	require.True(t, ok)
	agent.Bearer = token

	rr := agent.Post("/api/pop/sessions/"+started.SessionID+"/tag", nil).RequireStatus(http.StatusOK)
	assert.Equal(t, "SBI-2024-001", rr.Field("pop_agent_id"))

	rr = agent.Get("/api/pop/dashboard").RequireStatus(http.StatusOK)
	assert.Equal(t, float64(1), rr.Field("total_sessions"))

	t.Run("agent token does not open the regulator API", func(t *testing.T) {
		agent.Get("/api/admin/dashboard").AssertError(http.StatusForbidden, "forbidden")
	})

	t.Run("regulator sees the agent's sessions", func(t *testing.T) {
		regulator := testutil.NewAPIClient(t, router)
		regulator.Bearer = regulatorToken(t)
		rr := regulator.Get("/api/admin/agents/SBI-2024-001").RequireStatus(http.StatusOK)
		assert.Equal(t, float64(1), rr.Field("total_sessions"))

		trail := testutil.Decode[struct {
			Entries []struct {
				Action string `json:"action"`
			} `json:"entries"`
		}](regulator.Get("/api/admin/audit/" + started.SessionID).RequireStatus(http.StatusOK))
		require.Len(t, trail.Entries, 2)
		assert.Equal(t, "AGENT_SESSION_TAGGED", trail.Entries[1].Action)
	})
}
