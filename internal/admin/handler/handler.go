package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"onboard/internal/admin/service"
	"onboard/internal/audit"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/middleware/admin"
	"onboard/pkg/platform/middleware/auth"
	pstrings "onboard/pkg/platform/strings"
	"onboard/pkg/requestcontext"
)

// Service defines the regulator queries.
type Service interface {
	Dashboard(ctx context.Context) (*service.Dashboard, error)
	ListSessions(ctx context.Context, q service.ListQuery) (*service.SessionPage, error)
	AuditTrail(ctx context.Context, sessionID id.SessionID) (*service.Trail, error)
	VerifyChain(ctx context.Context, sessionID id.SessionID) (*audit.Verification, error)
	AgentStats(ctx context.Context, agentID string) (*service.AgentStats, error)
}

// Handler serves the regulator API.
type Handler struct {
	logger    *slog.Logger
	regulator Service
	validator auth.JWTValidator
	metrics   *metrics.Metrics
}

// New creates a regulator Handler. validator authenticates bearer tokens.
func New(regulator Service, validator auth.JWTValidator, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:    logger,
		regulator: regulator,
		validator: validator,
		metrics:   metrics,
	}
}

// Register mounts the regulator routes under /api/admin.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.ClientMetadata)
	api.Use(middleware.RequestTime)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.LatencyMiddleware(h.metrics))
	api.Use(auth.RequireAuth(h.validator, h.logger))
	api.Use(admin.RequireRole(admin.RoleRegulator, h.logger))

	api.Get("/dashboard", h.handleDashboard)
	api.Get("/sessions", h.handleListSessions)
	api.Get("/audit/{sessionID}", h.handleAuditTrail)
	api.Get("/audit/{sessionID}/verify", h.handleVerifyChain)
	api.Get("/agents/{agentID}", h.handleAgentStats)

	r.Mount("/api/admin", api)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	dashboard, err := h.regulator.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, "dashboard", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, dashboard)
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "limit must be a non-negative integer"))
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "offset must be a non-negative integer"))
		return
	}
	page, err := h.regulator.ListSessions(r.Context(), service.ListQuery{
		Statuses: pstrings.SplitList(q["status"]),
		AgentID:  q.Get("agent_id"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.fail(w, r, "list sessions", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) handleAgentStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.regulator.AgentStats(r.Context(), chi.URLParam(r, "agentID"))
	if err != nil {
		h.fail(w, r, "agent stats", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) handleAuditTrail(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	trail, err := h.regulator.AuditTrail(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "audit trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAuditTrailResponse(trail))
}

func (h *Handler) handleVerifyChain(w http.ResponseWriter, r *http.Request) {
	sessionID, err := id.ParseSessionID(chi.URLParam(r, "sessionID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	result, err := h.regulator.VerifyChain(r.Context(), sessionID)
	if err != nil {
		h.fail(w, r, "verify chain", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	level := slog.LevelError
	if dErrors.IsClientError(dErrors.CodeOf(err)) {
		level = slog.LevelWarn
	}
	h.logger.Log(ctx, level, "regulator request failed",
		"op", op,
		"actor", requestcontext.Actor(ctx),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	httputil.WriteError(w, err)
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
