// Package service is the onboarding state machine. Every mutation of a
// session runs inside SessionTx together with exactly one audit append, so the
// status commit and the chain entry land together or not at all. Calls to
// external collaborators are made before the session lock is taken.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"onboard/internal/account"
	"onboard/internal/audit"
	"onboard/internal/notify"
	"onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/providers"
	"onboard/internal/risk"
	"onboard/internal/signature"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

type SessionStore interface {
	Create(ctx context.Context, session *models.Session) error
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	FindByResumeToken(ctx context.Context, token string) (*models.Session, error)
	Save(ctx context.Context, session *models.Session) error
}

type VerificationStore interface {
	Create(ctx context.Context, record *models.VerificationRecord) error
	LatestBySession(ctx context.Context, sessionID id.SessionID) (*models.VerificationRecord, error)
}

type PaymentStore interface {
	Create(ctx context.Context, payment *models.Payment) error
	FindByID(ctx context.Context, paymentID id.PaymentID) (*models.Payment, error)
	Save(ctx context.Context, payment *models.Payment) error
}

type ConsentStore interface {
	Create(ctx context.Context, artifact *models.ConsentArtifact) error
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*models.ConsentArtifact, error)
}

// AuditLog appends to the session's hash chain.
type AuditLog interface {
	Append(ctx context.Context, sessionID id.SessionID, action audit.Action, payload, metadata map[string]any) (*audit.Entry, error)
}

// RiskEvaluator classifies a session.
type RiskEvaluator interface {
	Evaluate(ctx context.Context, in risk.Input) risk.Assessment
}

// Stores groups the persistence the service writes through.
type Stores struct {
	Sessions      SessionStore
	Verifications VerificationStore
	Payments      PaymentStore
	Consents      ConsentStore
	Signatures    signature.Store
}

// Config tunes the state machine.
type Config struct {
	// SignatureTTL bounds how long an e-sign reference can be completed.
	SignatureTTL time.Duration
	// CKYCUploadDeadline is the window for uploading a verified record to CKYC.
	CKYCUploadDeadline time.Duration
	// RiskGateEnforced blocks signing until VCIP/EDD requirements are met.
	RiskGateEnforced bool
	// DemoProofs returns the e-sign proof to the caller. Only for simulated signers.
	DemoProofs bool
}

func DefaultConfig() Config {
	return Config{
		SignatureTTL:       10 * time.Minute,
		CKYCUploadDeadline: 72 * time.Hour,
	}
}

// Service orchestrates the onboarding lifecycle.
type Service struct {
	sessions      SessionStore
	verifications VerificationStore
	payments      PaymentStore
	consents      ConsentStore
	signatures    signature.Store
	audit         AuditLog
	risk          RiskEvaluator
	generator     *account.Generator
	tx            SessionTx

	verifiers map[models.VerificationMethod]providers.VerificationProvider
	registry  providers.RegistryProvider
	gateway   providers.PaymentGateway
	signer    providers.SignatureProvider
	agents    providers.AgentRegistry
	notifier  notify.Notifier

	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithConfig(cfg Config) Option {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithVerifier replaces the provider used for one verification channel.
func WithVerifier(method models.VerificationMethod, p providers.VerificationProvider) Option {
	return func(s *Service) {
		s.verifiers[method] = p
	}
}

func WithRegistry(r providers.RegistryProvider) Option {
	return func(s *Service) {
		s.registry = r
	}
}

func WithGateway(g providers.PaymentGateway) Option {
	return func(s *Service) {
		s.gateway = g
	}
}

func WithSigner(p providers.SignatureProvider) Option {
	return func(s *Service) {
		s.signer = p
	}
}

// WithAgents replaces the point-of-presence agent registry.
func WithAgents(r providers.AgentRegistry) Option {
	return func(s *Service) {
		s.agents = r
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		s.notifier = n
	}
}

// New constructs a Service. Collaborators not supplied through options
// default to the simulated providers and a log-only notifier.
func New(stores Stores, auditLog AuditLog, evaluator RiskEvaluator, generator *account.Generator, tx SessionTx, opts ...Option) (*Service, error) {
	switch {
	case stores.Sessions == nil:
		return nil, errors.New("session store is required")
	case stores.Verifications == nil:
		return nil, errors.New("verification store is required")
	case stores.Payments == nil:
		return nil, errors.New("payment store is required")
	case stores.Consents == nil:
		return nil, errors.New("consent store is required")
	case stores.Signatures == nil:
		return nil, errors.New("signature store is required")
	case auditLog == nil:
		return nil, errors.New("audit log is required")
	case evaluator == nil:
		return nil, errors.New("risk evaluator is required")
	case generator == nil:
		return nil, errors.New("account generator is required")
	case tx == nil:
		return nil, errors.New("session tx is required")
	}

	registry := &providers.SimulatedRegistry{}
	s := &Service{
		sessions:      stores.Sessions,
		verifications: stores.Verifications,
		payments:      stores.Payments,
		consents:      stores.Consents,
		signatures:    stores.Signatures,
		audit:         auditLog,
		risk:          evaluator,
		generator:     generator,
		tx:            tx,
		verifiers: map[models.VerificationMethod]providers.VerificationProvider{
			models.VerificationCKYC:       providers.CKYCProvider{Registry: registry},
			models.VerificationDigiLocker: providers.DigiLockerProvider{},
			models.VerificationSmartScan:  providers.SmartScanProvider{},
			models.VerificationManual:     providers.ManualProvider{DefaultConfidence: 60},
		},
		registry: registry,
		gateway:  providers.NewSimulatedGateway(),
		signer:   providers.SimulatedSigner{},
		agents:   providers.NewSimulatedAgentRegistry(),
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
		tracer:   otel.Tracer("onboard/onboarding"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = notify.NewLogNotifier(s.logger)
	}
	if s.cfg.SignatureTTL <= 0 {
		s.cfg.SignatureTTL = DefaultConfig().SignatureTTL
	}
	return s, nil
}

// start opens a span and returns a finish func that records the outcome.
func (s *Service) start(ctx context.Context, op string, sessionID id.SessionID) (context.Context, func(*error)) {
	begin := time.Now()
	ctx, span := s.tracer.Start(ctx, "onboarding."+op, trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
	))
	return ctx, func(errp *error) {
		if errp != nil && *errp != nil {
			span.SetStatus(codes.Error, (*errp).Error())
			span.SetAttributes(attribute.String("error_code", string(dErrors.CodeOf(*errp))))
		}
		span.End()
		s.metrics.ObserveOperation(op, begin)
	}
}

// load reads a session, translating store sentinels into domain errors.
func (s *Service) load(ctx context.Context, sessionID id.SessionID) (*models.Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
	}
	session, err := s.sessions.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load session")
	}
	return session, nil
}

func (s *Service) save(ctx context.Context, session *models.Session) error {
	if err := session.CheckInvariants(); err != nil {
		return err
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "session not found")
		}
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save session")
	}
	return nil
}

// assess re-runs the risk engine and applies the result to session.
func (s *Service) assess(ctx context.Context, session *models.Session, confidence *float64, pending int) risk.Assessment {
	assessment := s.risk.Evaluate(ctx, risk.Input{
		Profile:            session.Profile,
		VerificationMethod: session.VerificationMethod,
		Confidence:         confidence,
		PendingRecords:     pending,
	})
	session.ApplyAssessment(assessment, requestcontext.Now(ctx))
	s.metrics.IncRiskAssessment(string(assessment.Level))
	return assessment
}

func riskMetadata(a risk.Assessment) map[string]any {
	return map[string]any{
		"risk_level":   string(a.Level),
		"risk_reasons": a.Reasons,
	}
}

// providerError maps a collaborator failure to the caller-facing code.
func (s *Service) providerError(ctx context.Context, provider string, code dErrors.Code, err error) error {
	s.metrics.IncProviderFailure(provider)
	s.logger.WarnContext(ctx, "collaborator call failed",
		"provider", provider,
		"category", string(providers.GetCategory(err)),
		"retryable", providers.IsRetryable(err),
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
	)
	var pe *providers.ProviderError
	if errors.As(err, &pe) {
		return dErrors.Wrap(err, code, pe.Message)
	}
	return dErrors.Wrap(err, code, provider+" is unavailable")
}

// emit sends a notification after commit. The request may already be gone,
// so delivery runs on a context detached from its cancellation.
func (s *Service) emit(ctx context.Context, session *models.Session, eventType notify.EventType, attrs map[string]string) {
	event := notify.Event{
		Type:       eventType,
		SessionID:  session.ID.String(),
		Language:   session.Language,
		Attributes: attrs,
		OccurredAt: requestcontext.Now(ctx).UTC(),
	}
	if err := s.notifier.Notify(context.WithoutCancel(ctx), event); err != nil {
		s.logger.WarnContext(ctx, "notification failed",
			"type", string(eventType),
			"session_id", session.ID.String(),
			"error", err,
		)
	}
}
