package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/providers"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/hashing"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

const maxConsentText = 16 << 10

// ArchiveConsent stores a hashed consent artifact and records it in the chain.
// Consents can be captured at any stage, including after completion.
func (s *Service) ArchiveConsent(ctx context.Context, sessionID id.SessionID, req ConsentRequest) (artifact *models.ConsentArtifact, err error) {
	ctx, finish := s.start(ctx, "ArchiveConsent", sessionID)
	defer finish(&err)

	consentType := models.ConsentType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !consentType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unsupported consent type %q", req.Type))
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "consent text is required")
	}
	if len(text) > maxConsentText {
		return nil, dErrors.New(dErrors.CodeValidation, "consent text is too long")
	}

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		if _, err := s.load(ctx, sessionID); err != nil {
			return err
		}
		now := requestcontext.Now(ctx).UTC()
		artifact = &models.ConsentArtifact{
			ID:        id.NewConsentID(),
			SessionID: sessionID,
			Type:      consentType,
			Text:      text,
			Metadata:  req.Metadata,
			IPAddress: requestcontext.ClientIP(ctx),
			UserAgent: requestcontext.UserAgent(ctx),
			CreatedAt: now,
		}
		artifact.ArtifactHash = hashing.ContentHash(map[string]any{
			"session_id":   sessionID.String(),
			"consent_type": string(consentType),
			"text":         text,
			"metadata":     req.Metadata,
			"captured_at":  now.Format("2006-01-02T15:04:05.000Z07:00"),
		})

		if _, err := s.audit.Append(ctx, sessionID, audit.ActionConsentCaptured, map[string]any{
			"consent_id":    artifact.ID.String(),
			"consent_type":  string(consentType),
			"artifact_hash": artifact.ArtifactHash,
		}, map[string]any{"consent_type": string(consentType)}); err != nil {
			return err
		}
		if err := s.consents.Create(ctx, artifact); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to archive consent")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// ListConsents returns the session's consent artifacts, oldest first.
func (s *Service) ListConsents(ctx context.Context, sessionID id.SessionID) ([]*models.ConsentArtifact, error) {
	if _, err := s.load(ctx, sessionID); err != nil {
		return nil, err
	}
	artifacts, err := s.consents.ListBySession(ctx, sessionID)
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to list consents")
	}
	return artifacts, nil
}

// TagAgent attributes the session to a registered point-of-presence agent.
// Tagging again with the same agent is a no-op; a session belongs to at most
// one agent and completed sessions can no longer be attributed.
func (s *Service) TagAgent(ctx context.Context, sessionID id.SessionID, agentID string) (snapshot *models.Snapshot, err error) {
	ctx, finish := s.start(ctx, "TagAgent", sessionID)
	defer finish(&err)

	agent, err := s.registeredAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		switch {
		case session.PopAgentID == agent.ID:
			snapshot = session.Snapshot()
			return nil
		case session.PopAgentID != "":
			return dErrors.New(dErrors.CodeConflict, "session is already attributed to another agent")
		case session.Status == models.StatusCompleted:
			return dErrors.New(dErrors.CodeInvalidTransition, "completed sessions cannot be attributed")
		}

		if _, err := s.audit.Append(ctx, sessionID, audit.ActionAgentSessionTagged, map[string]any{
			"agent_id": agent.ID,
			"pop_id":   agent.PopID,
		}, map[string]any{
			"agent_id":     agent.ID,
			"organization": agent.Organization,
		}); err != nil {
			return err
		}
		session.PopAgentID = agent.ID
		session.UpdatedAt = requestcontext.Now(ctx)
		if err := s.save(ctx, session); err != nil {
			return err
		}
		snapshot = session.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "session attributed to agent",
		"session_id", sessionID.String(),
		"agent_id", agent.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	return snapshot, nil
}

// AuthenticateAgent checks an agent's PIN against the registry.
func (s *Service) AuthenticateAgent(ctx context.Context, agentID, pin string) (*providers.Agent, error) {
	if strings.TrimSpace(agentID) == "" || pin == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agent_id and pin are required")
	}
	agent, err := s.agents.Authenticate(ctx, agentID, pin)
	if err != nil {
		switch providers.GetCategory(err) {
		case providers.ErrorRejected, providers.ErrorNotFound:
			s.logger.WarnContext(ctx, "agent login rejected",
				"agent_id", providers.NormalizeAgentID(agentID),
				"ip_address", requestcontext.ClientIP(ctx),
			)
			return nil, dErrors.New(dErrors.CodeUnauthorized, "agent id or pin is invalid")
		}
		return nil, s.providerError(ctx, "pop-registry", dErrors.CodeProviderFailure, err)
	}
	s.logger.InfoContext(ctx, "agent logged in",
		"agent_id", agent.ID,
		"organization", agent.Organization,
		"ip_address", requestcontext.ClientIP(ctx),
	)
	return agent, nil
}

func (s *Service) registeredAgent(ctx context.Context, agentID string) (*providers.Agent, error) {
	if strings.TrimSpace(agentID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agent_id is required")
	}
	agent, err := s.agents.Lookup(ctx, agentID)
	if err != nil {
		if providers.GetCategory(err) == providers.ErrorNotFound {
			return nil, dErrors.New(dErrors.CodeNotFound, "agent is not registered")
		}
		return nil, s.providerError(ctx, "pop-registry", dErrors.CodeProviderFailure, err)
	}
	return agent, nil
}

// RecordAgentEvent attributes an assisted-channel action to a registered
// agent with an AGENT_<KIND> chain entry. Once a session is tagged, only its
// agent may record events on it. The session status is not touched.
func (s *Service) RecordAgentEvent(ctx context.Context, sessionID id.SessionID, event AgentEvent) (entry *audit.Entry, err error) {
	ctx, finish := s.start(ctx, "RecordAgentEvent", sessionID)
	defer finish(&err)

	if strings.TrimSpace(event.AgentID) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agent_id is required")
	}
	action, ok := audit.AgentAction(strings.ToUpper(strings.TrimSpace(event.Kind)))
	if !ok {
		return nil, dErrors.New(dErrors.CodeValidation, "event kind must be upper-case letters and underscores")
	}
	agent, err := s.registeredAgent(ctx, event.AgentID)
	if err != nil {
		return nil, err
	}

	payload := make(map[string]any, len(event.Details)+1)
	for k, v := range event.Details {
		payload[k] = v
	}
	payload["agent_id"] = agent.ID

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.PopAgentID != "" && session.PopAgentID != agent.ID {
			return dErrors.New(dErrors.CodeForbidden, "session is attributed to another agent")
		}
		entry, err = s.audit.Append(ctx, sessionID, action, payload, map[string]any{"agent_id": agent.ID})
		return err
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}
