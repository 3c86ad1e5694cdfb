package service

import (
	"context"

	"onboard/internal/audit"
	"onboard/internal/notify"
	"onboard/internal/onboarding/models"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/requestcontext"
)

// IssueAccountNumber completes the session. Calling it again on a completed
// session returns the number already issued.
func (s *Service) IssueAccountNumber(ctx context.Context, sessionID id.SessionID) (number string, err error) {
	ctx, finish := s.start(ctx, "IssueAccountNumber", sessionID)
	defer finish(&err)

	var (
		session *models.Session
		issued  bool
	)
	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		var err error
		session, err = s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.Status == models.StatusCompleted {
			number = session.AccountNumber
			return nil
		}
		if session.Status != models.StatusPaymentComplete {
			return dErrors.New(dErrors.CodePreconditionFailed, "account can only be issued after payment")
		}

		number = s.generator.Generate(sessionID.String())
		session.Complete(number, requestcontext.Now(ctx).UTC())
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionAccountIssued, map[string]any{
			"account_number": number,
		}, map[string]any{"account_type": string(session.AccountType)}); err != nil {
			return err
		}
		if err := s.save(ctx, session); err != nil {
			return err
		}
		issued = true
		return nil
	})
	if err != nil {
		return "", err
	}

	if issued {
		s.metrics.IncAccountIssued()
		s.metrics.IncTransition(string(models.StatusCompleted))
		s.logger.InfoContext(ctx, "account issued",
			"session_id", sessionID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		s.emit(ctx, session, notify.EventAccountIssued, map[string]string{
			"account_number": number,
		})
	}
	return number, nil
}
