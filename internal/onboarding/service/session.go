package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/profile"
	"onboard/internal/risk"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

const (
	defaultLanguage    = "en"
	resumeTokenBytes   = 6
	maxStartCollisions = 5
)

// Start creates a session in the started state.
func (s *Service) Start(ctx context.Context, req StartRequest) (snapshot *models.Snapshot, err error) {
	ctx, finish := s.start(ctx, "Start", id.SessionID{})
	defer finish(&err)

	accountType := models.AccountType(strings.ToLower(strings.TrimSpace(string(req.AccountType))))
	if accountType == "" {
		accountType = models.AccountTypeCitizen
	}
	if !accountType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "account_type must be citizen or corporate")
	}
	language := strings.ToLower(strings.TrimSpace(req.Language))
	if language == "" {
		language = defaultLanguage
	}
	if !models.ValidLanguage(language) {
		return nil, dErrors.New(dErrors.CodeValidation, "language must be a two letter code")
	}

	for attempt := 0; attempt < maxStartCollisions; attempt++ {
		token, err := newResumeToken()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to generate resume token")
		}
		now := requestcontext.Now(ctx)
		session, err := models.NewSession(id.NewSessionID(), token, accountType, language, now)
		if err != nil {
			return nil, err
		}
		session.IPAddress = requestcontext.ClientIP(ctx)
		session.UserAgent = requestcontext.UserAgent(ctx)

		err = s.tx.RunInTx(ctx, session.ID, func(ctx context.Context) error {
			if err := s.sessions.Create(ctx, session); err != nil {
				return err
			}
			_, err := s.audit.Append(ctx, session.ID, audit.ActionSessionStart, map[string]any{
				"account_type": string(accountType),
				"language":     language,
			}, nil)
			return err
		})
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.WarnContext(ctx, "resume token collision; retrying", "attempt", attempt+1)
			continue
		}
		if err != nil {
			if _, ok := dErrors.As(err); ok {
				return nil, err
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to create session")
		}

		s.metrics.IncSessionStarted()
		s.metrics.IncTransition(string(models.StatusStarted))
		s.logger.InfoContext(ctx, "session started",
			"session_id", session.ID.String(),
			"account_type", string(accountType),
			"request_id", requestcontext.RequestID(ctx),
		)
		return session.Snapshot(), nil
	}
	return nil, dErrors.New(dErrors.CodeInternal, "could not allocate a unique resume token")
}

// Resume returns the snapshot of the session holding token. Read-only.
func (s *Service) Resume(ctx context.Context, token string) (*models.Snapshot, error) {
	token = strings.ToUpper(strings.TrimSpace(token))
	if token == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "resume token is required")
	}
	session, err := s.sessions.FindByResumeToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session for resume token")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load session")
	}
	return session.Snapshot(), nil
}

// Status returns the snapshot of a session by id. Read-only.
func (s *Service) Status(ctx context.Context, sessionID id.SessionID) (*models.Snapshot, error) {
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Snapshot(), nil
}

// UpdateProfile merges fields, re-evaluates risk and, when asked, advances a
// started session to profile_captured.
func (s *Service) UpdateProfile(ctx context.Context, sessionID id.SessionID, update ProfileUpdate) (assessment *risk.Assessment, err error) {
	ctx, finish := s.start(ctx, "UpdateProfile", sessionID)
	defer finish(&err)

	if len(update.Fields) == 0 && !update.Advance {
		return nil, dErrors.New(dErrors.CodeValidation, "no profile fields supplied")
	}
	if err := profile.ValidateFields(update.Fields); err != nil {
		return nil, err
	}
	fields := normalizeProfileFields(update.Fields)

	var result risk.Assessment
	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == models.StatusCompleted {
			return dErrors.New(dErrors.CodeInvalidTransition, "profile is closed once the account is issued")
		}

		now := requestcontext.Now(ctx)
		session.Profile = session.Profile.Merge(fields)
		result = s.assess(ctx, session, nil, 0)
		advanced := update.Advance && session.Advance(models.StatusProfileCaptured, now)

		meta := riskMetadata(result)
		meta["status"] = string(session.Status)
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionProfileUpdate, fields, meta); err != nil {
			return err
		}
		if err := s.save(ctx, session); err != nil {
			return err
		}
		if advanced {
			s.metrics.IncTransition(string(models.StatusProfileCaptured))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// normalizeProfileFields upper-cases a supplied PAN so the identity-reuse
// lookup matches records regardless of how it was typed.
func normalizeProfileFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	if pan, ok := out[profile.KeyPAN].(string); ok {
		out[profile.KeyPAN] = models.NormalizePAN(pan)
	}
	return out
}

func newResumeToken() (string, error) {
	buf := make([]byte, resumeTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(buf)), nil
}
