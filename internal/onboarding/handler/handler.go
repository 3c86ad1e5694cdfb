package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/middleware"
	"onboard/internal/providers"
	rlmodels "onboard/internal/ratelimit/models"
	"onboard/internal/risk"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

// Service defines the interface for onboarding operations.
type Service interface {
	Start(ctx context.Context, req service.StartRequest) (*models.Snapshot, error)
	Resume(ctx context.Context, token string) (*models.Snapshot, error)
	Status(ctx context.Context, sessionID id.SessionID) (*models.Snapshot, error)
	UpdateProfile(ctx context.Context, sessionID id.SessionID, update service.ProfileUpdate) (*risk.Assessment, error)
	Verify(ctx context.Context, sessionID id.SessionID, method models.VerificationMethod, in providers.VerificationInput) (*service.VerificationOutcome, error)
	LookupRegistry(ctx context.Context, sessionID id.SessionID, pan string) (*providers.RegistryRecord, error)
	ArchiveConsent(ctx context.Context, sessionID id.SessionID, req service.ConsentRequest) (*models.ConsentArtifact, error)
	InitiateSignature(ctx context.Context, sessionID id.SessionID, method models.SignatureMethod) (*service.SignatureInitiation, error)
	CompleteSignature(ctx context.Context, sessionID id.SessionID, reference, proof string) (*models.Snapshot, error)
	InitiatePayment(ctx context.Context, sessionID id.SessionID, req service.PaymentRequest) (*service.PaymentInitiation, error)
	ConfirmPayment(ctx context.Context, sessionID id.SessionID, paymentID id.PaymentID) (*models.Snapshot, error)
	IssueAccountNumber(ctx context.Context, sessionID id.SessionID) (string, error)
	RecordAgentEvent(ctx context.Context, sessionID id.SessionID, event service.AgentEvent) (*audit.Entry, error)
}

// RateLimiter wraps a route with a per-client budget.
type RateLimiter interface {
	RateLimit(class rlmodels.EndpointClass) func(http.Handler) http.Handler
}

// Handler serves the subscriber onboarding API.
type Handler struct {
	logger         *slog.Logger
	onboarding     Service
	metrics        *metrics.Metrics
	limiter        RateLimiter
	requestTimeout time.Duration
}

type Option func(*Handler)

func WithRateLimiter(l RateLimiter) Option {
	return func(h *Handler) {
		h.limiter = l
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.requestTimeout = d
		}
	}
}

// New creates a new onboarding Handler.
func New(onboarding Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		onboarding:     onboarding,
		metrics:        metrics,
		requestTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register registers the subscriber routes under /api.
func (h *Handler) Register(r chi.Router) {
	api := chi.NewRouter()
	api.Use(middleware.Recovery(h.logger))
	api.Use(middleware.RequestID)
	api.Use(middleware.ClientMetadata)
	api.Use(middleware.RequestTime)
	api.Use(middleware.Logger(h.logger))
	api.Use(middleware.Timeout(h.requestTimeout))
	api.Use(middleware.ContentTypeJSON)
	api.Use(middleware.LatencyMiddleware(h.metrics))

	api.Post("/session/start", h.handleStart)
	api.Post("/session/resume", h.handleResume)

	api.Group(func(r chi.Router) {
		r.Use(middleware.RequireSession(h.logger))
		r.Get("/session/status", h.handleStatus)
		r.Post("/session/update", h.handleUpdate)
		r.With(h.rateLimit(rlmodels.ClassVerification)).Post("/kyc/verify", h.handleVerify)
		r.Get("/kyc/ckyc/{pan}", h.handleRegistryLookup)
		r.Post("/kyc/consent/archive", h.handleArchiveConsent)
		r.Post("/esign/initiate", h.handleInitiateSignature)
		r.Post("/esign/verify", h.handleCompleteSignature)
		r.With(h.rateLimit(rlmodels.ClassPayment)).Post("/payment/initiate", h.handleInitiatePayment)
		r.Post("/payment/confirm/{paymentID}", h.handleConfirmPayment)
		r.Post("/payment/generate-pran", h.handleIssueAccount)
		r.Post("/agent/event", h.handleAgentEvent)
	})

	r.Mount("/api", api)
}

func (h *Handler) rateLimit(class rlmodels.EndpointClass) func(http.Handler) http.Handler {
	if h.limiter == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.limiter.RateLimit(class)
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if !h.decode(w, r, &req) {
		return
	}
	snapshot, err := h.onboarding.Start(r.Context(), req.toService())
	if err != nil {
		h.fail(w, r, "start session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, snapshot)
}

func (h *Handler) handleResume(w http.ResponseWriter, r *http.Request) {
	var req resumeRequest
	if !h.decode(w, r, &req) {
		return
	}
	snapshot, err := h.onboarding.Resume(r.Context(), strings.TrimSpace(req.ResumeToken))
	if err != nil {
		h.fail(w, r, "resume session", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	snapshot, err := h.onboarding.Status(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(w, r, "session status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}
	assessment, err := h.onboarding.UpdateProfile(ctx, requestcontext.SessionID(ctx), service.ProfileUpdate{
		Fields:  req.Fields,
		Advance: req.Advance,
	})
	if err != nil {
		h.fail(w, r, "update profile", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toAssessmentResponse(assessment))
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req verifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	method, in := req.toService()
	outcome, err := h.onboarding.Verify(ctx, requestcontext.SessionID(ctx), method, in)
	if err != nil {
		h.fail(w, r, "verify identity", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toVerificationResponse(outcome))
}

func (h *Handler) handleRegistryLookup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	record, err := h.onboarding.LookupRegistry(ctx, requestcontext.SessionID(ctx), chi.URLParam(r, "pan"))
	if err != nil {
		h.fail(w, r, "registry lookup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, record)
}

func (h *Handler) handleArchiveConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req consentRequest
	if !h.decode(w, r, &req) {
		return
	}
	artifact, err := h.onboarding.ArchiveConsent(ctx, requestcontext.SessionID(ctx), service.ConsentRequest{
		Type:     models.ConsentType(strings.ToLower(strings.TrimSpace(req.ConsentType))),
		Text:     req.Text,
		Metadata: req.Metadata,
	})
	if err != nil {
		h.fail(w, r, "archive consent", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, consentResponse{
		ConsentID:    artifact.ID.String(),
		ConsentType:  string(artifact.Type),
		ArtifactHash: artifact.ArtifactHash,
		CapturedAt:   artifact.CreatedAt,
	})
}

func (h *Handler) handleInitiateSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req signatureInitiateRequest
	if !h.decode(w, r, &req) {
		return
	}
	initiation, err := h.onboarding.InitiateSignature(ctx, requestcontext.SessionID(ctx), models.SignatureMethod(req.Method))
	if err != nil {
		h.fail(w, r, "initiate signature", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, signatureInitiationResponse{
		Reference: initiation.Reference,
		Method:    string(initiation.Method),
		ExpiresAt: initiation.ExpiresAt,
		DemoProof: initiation.DemoProof,
	})
}

func (h *Handler) handleCompleteSignature(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req signatureVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	snapshot, err := h.onboarding.CompleteSignature(ctx, requestcontext.SessionID(ctx),
		strings.TrimSpace(req.Reference), strings.TrimSpace(req.Proof))
	if err != nil {
		h.fail(w, r, "complete signature", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	initiation, err := h.onboarding.InitiatePayment(ctx, requestcontext.SessionID(ctx), req.toService())
	if err != nil {
		h.fail(w, r, "initiate payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, paymentInitiationResponse{
		PaymentID:  initiation.PaymentID.String(),
		GatewayRef: initiation.GatewayRef,
		Method:     string(initiation.Method),
		Amount:     initiation.Amount,
		Tier:       initiation.Tier,
		Status:     initiation.Status,
	})
}

func (h *Handler) handleConfirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	paymentID, err := id.ParsePaymentID(chi.URLParam(r, "paymentID"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	snapshot, err := h.onboarding.ConfirmPayment(ctx, requestcontext.SessionID(ctx), paymentID)
	if err != nil {
		h.fail(w, r, "confirm payment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, snapshot)
}

func (h *Handler) handleIssueAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	number, err := h.onboarding.IssueAccountNumber(ctx, requestcontext.SessionID(ctx))
	if err != nil {
		h.fail(w, r, "issue account number", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, accountResponse{AccountNumber: number})
}

func (h *Handler) handleAgentEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req agentEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	entry, err := h.onboarding.RecordAgentEvent(ctx, requestcontext.SessionID(ctx), service.AgentEvent{
		AgentID: strings.TrimSpace(req.AgentID),
		Kind:    strings.TrimSpace(req.Kind),
		Details: req.Details,
	})
	if err != nil {
		h.fail(w, r, "record agent event", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, agentEventResponse{
		Sequence:  entry.Sequence,
		Action:    entry.Action,
		ChainHash: entry.ChainHash,
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		h.logger.WarnContext(r.Context(), "invalid request body",
			"request_id", requestcontext.RequestID(r.Context()),
			"error", err,
		)
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// fail logs at warn for client errors and at error otherwise, then writes
// the mapped response.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	ctx := r.Context()
	attrs := []any{
		"op", op,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	}
	if sessionID := requestcontext.SessionID(ctx); !sessionID.IsNil() {
		attrs = append(attrs, "session_id", sessionID.String())
	}
	if dErrors.IsClientError(dErrors.CodeOf(err)) {
		h.logger.WarnContext(ctx, "request rejected", attrs...)
	} else {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
	}
	httputil.WriteError(w, err)
}
