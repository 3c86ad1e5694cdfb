package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	adminsvc "onboard/internal/admin/service"
	"onboard/internal/onboarding/models"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/internal/providers"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/middleware/admin"
	"onboard/pkg/platform/middleware/auth"
	"onboard/pkg/requestcontext"
)

// DefaultTokenTTL is the lifetime of an agent token when none is configured.
const DefaultTokenTTL = 8 * time.Hour

// Service is the onboarding side of assisted onboarding.
type Service interface {
	AuthenticateAgent(ctx context.Context, agentID, pin string) (*providers.Agent, error)
	TagAgent(ctx context.Context, sessionID id.SessionID, agentID string) (*models.Snapshot, error)
}

// StatsSource builds the agent's performance view.
type StatsSource interface {
	AgentStats(ctx context.Context, agentID string) (*adminsvc.AgentStats, error)
}

// TokenIssuer mints the bearer token returned on login.
type TokenIssuer interface {
	GenerateAccessToken(subject, role string, expiresIn time.Duration) (string, error)
}

// Handler serves the agent API under /api/pop.
type Handler struct {
	logger    *slog.Logger
	agents    Service
	stats     StatsSource
	issuer    TokenIssuer
	validator auth.JWTValidator
	metrics   *metrics.Metrics
	tokenTTL  time.Duration
}

type Option func(*Handler)

func WithTokenTTL(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.tokenTTL = d
		}
	}
}

func New(agents Service, stats StatsSource, issuer TokenIssuer, validator auth.JWTValidator, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:    logger,
		agents:    agents,
		stats:     stats,
		issuer:    issuer,
		validator: validator,
		metrics:   metrics,
		tokenTTL:  DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the agent routes under /api/pop. Everything but login
// requires an agent token.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.ClientMetadata)
	api.Use(middleware.RequestTime)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.LatencyMiddleware(h.metrics))

	api.Post("/login", h.handleLogin)
	api.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(h.validator, h.logger))
		r.Use(admin.RequireRole(admin.RoleAgent, h.logger))
		r.Post("/sessions/{sessionID}/tag", h.handleTagSession)
		r.Get("/dashboard", h.handleDashboard)
	})

	r.Mount("/api/pop", api)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req loginRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}
	agent, err := h.agents.AuthenticateAgent(ctx, req.AgentID, req.PIN)
	if err != nil {
		h.fail(w, r, "login", err)
		return
	}
	token, err := h.issuer.GenerateAccessToken(agent.ID, admin.RoleAgent, h.tokenTTL)
	if err != nil {
		h.fail(w, r, "login", dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token"))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(h.tokenTTL.Seconds()),
		Agent:       *agent,
	})
}

func (h *Handler) handleTagSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snapshot, err := h.agents.TagAgent(ctx, sessionID, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(w, r, "tag session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, tagResponse{
		SessionID:  snapshot.SessionID,
		PopAgentID: snapshot.PopAgentID,
		Status:     snapshot.Status,
	})
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	stats, err := h.stats.AgentStats(ctx, requestcontext.Actor(ctx))
	if err != nil {
		h.fail(w, r, "dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	level := slog.LevelError
	if dErrors.IsClientError(dErrors.CodeOf(err)) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "agent request failed",
		"op", op,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}
