// Package audit keeps a tamper-evident, per-session hash chain of every
// state-changing onboarding action.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/hashing"
	"onboard/pkg/platform/origin"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// Store persists chains. AppendNext must run build and the insert atomically
// with respect to any other append for the same session, and must refuse with
// sentinel.ErrFrozen once the session is frozen.
type Store interface {
	AppendNext(ctx context.Context, sessionID id.SessionID, build func(last *Entry) (*Entry, error)) (*Entry, error)
	ListBySession(ctx context.Context, sessionID id.SessionID) ([]*Entry, error)
	Freeze(ctx context.Context, freeze Freeze) error
	ListFrozen(ctx context.Context) ([]Freeze, error)
}

// Service appends to and verifies audit chains.
type Service struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// New constructs a Service.
func New(store Store, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("audit store is required")
	}
	s := &Service{
		store:  store,
		logger: slog.Default(),
		tracer: otel.Tracer("onboard/audit"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Append links a new entry for action onto the session's chain. Origin
// metadata is read from ctx. Fails only when storage is unavailable or the
// chain is frozen.
func (s *Service) Append(ctx context.Context, sessionID id.SessionID, action Action, payload, metadata map[string]any) (*Entry, error) {
	ctx, span := s.tracer.Start(ctx, "audit.Append", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
		attribute.String("action", string(action)),
	))
	defer span.End()

	if !action.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown audit action %q", action))
	}

	o := origin.FromContext(ctx)
	meta := make(map[string]any, len(metadata)+2)
	for k, v := range metadata {
		meta[k] = v
	}
	if o.RequestID != "" {
		meta["request_id"] = o.RequestID
	}
	if client := o.Client(); client != nil {
		meta["client"] = client
	}
	if payload == nil {
		payload = map[string]any{}
	}
	payloadHash := hashing.ContentHash(payload)
	now := requestcontext.Now(ctx).UTC()

	entry, err := s.store.AppendNext(ctx, sessionID, func(last *Entry) (*Entry, error) {
		previous := hashing.Empty
		sequence := int64(1)
		if last != nil {
			previous = last.ChainHash
			sequence = last.Sequence + 1
		}
		return &Entry{
			SessionID:    sessionID,
			Sequence:     sequence,
			Action:       action,
			PayloadHash:  payloadHash,
			ChainHash:    hashing.Link(previous, payloadHash),
			PreviousHash: previous,
			Timestamp:    now,
			IPAddress:    o.IPAddress,
			UserAgent:    o.UserAgent,
			Metadata:     meta,
		}, nil
	})
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, sentinel.ErrFrozen) {
			s.metrics.IncAppendFailure("frozen")
			return nil, dErrors.Wrap(err, dErrors.CodeIntegrityFailure, "audit chain is frozen for regulatory review")
		}
		s.metrics.IncAppendFailure("storage")
		s.logger.ErrorContext(ctx, "failed to append audit entry",
			"session_id", sessionID.String(),
			"action", string(action),
			"error", err,
		)
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to append audit entry")
	}
	s.metrics.IncAppend(action)
	return entry, nil
}

// Trail returns the session's entries oldest first.
func (s *Service) Trail(ctx context.Context, sessionID id.SessionID) ([]*Entry, error) {
	entries, err := s.store.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load audit trail")
	}
	if entries == nil {
		entries = []*Entry{}
	}
	return entries, nil
}

// VerifyChain walks the session's chain and reports the first broken entry.
// A broken chain is frozen: later appends are refused until manual review.
func (s *Service) VerifyChain(ctx context.Context, sessionID id.SessionID) (*Verification, error) {
	ctx, span := s.tracer.Start(ctx, "audit.VerifyChain", trace.WithAttributes(
		attribute.String("session_id", sessionID.String()),
	))
	defer span.End()

	entries, err := s.Trail(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result := &Verification{
		SessionID:    sessionID,
		Valid:        true,
		TotalEntries: len(entries),
		Message:      "chain integrity verified",
		VerifiedAt:   requestcontext.Now(ctx).UTC(),
	}
	if broken := FirstBreak(entries); broken != nil {
		result.Valid = false
		result.BrokenAt = broken
		result.Message = fmt.Sprintf("chain broken at entry %d: %s", broken.Sequence, broken.Reason)
		s.freeze(ctx, sessionID, broken)
	}
	s.metrics.IncVerification(result.Valid)
	span.SetAttributes(attribute.Bool("valid", result.Valid))
	return result, nil
}

// FirstBreak checks sequence continuity, previous-hash linkage and the stored
// chain hash of each entry, oldest first, and returns the first failure.
func FirstBreak(entries []*Entry) *BrokenAt {
	expectedPrevious := hashing.Empty
	for i, e := range entries {
		expectedSequence := int64(i + 1)
		switch {
		case e.Sequence != expectedSequence:
			return &BrokenAt{Sequence: e.Sequence, Action: e.Action,
				Reason: fmt.Sprintf("sequence gap: expected %d", expectedSequence)}
		case e.PreviousHash != expectedPrevious:
			return &BrokenAt{Sequence: e.Sequence, Action: e.Action,
				Reason: "previous hash does not match preceding entry"}
		case e.ChainHash != hashing.Link(e.PreviousHash, e.PayloadHash):
			return &BrokenAt{Sequence: e.Sequence, Action: e.Action,
				Reason: "chain hash does not match recomputed value"}
		}
		expectedPrevious = e.ChainHash
	}
	return nil
}

// Frozen lists sessions awaiting manual review.
func (s *Service) Frozen(ctx context.Context) ([]Freeze, error) {
	frozen, err := s.store.ListFrozen(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list frozen chains")
	}
	return frozen, nil
}

func (s *Service) freeze(ctx context.Context, sessionID id.SessionID, broken *BrokenAt) {
	s.metrics.IncIntegrityBreak()
	s.logger.ErrorContext(ctx, "audit chain integrity failure",
		"session_id", sessionID.String(),
		"broken_sequence", broken.Sequence,
		"broken_action", string(broken.Action),
		"reason", broken.Reason,
		"request_id", requestcontext.RequestID(ctx),
	)
	err := s.store.Freeze(ctx, Freeze{
		SessionID: sessionID,
		Sequence:  broken.Sequence,
		Reason:    broken.Reason,
		FrozenAt:  requestcontext.Now(ctx).UTC(),
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to freeze broken audit chain",
			"session_id", sessionID.String(),
			"error", err,
		)
	}
}
