package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/profile"
	"onboard/internal/risk"
	"onboard/internal/signature"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

var errInvalidProof = dErrors.New(dErrors.CodeInvalidProof, "signature reference or proof is invalid")

// InitiateSignature starts an Aadhaar OTP or DSC e-sign. The returned
// reference can be completed once, before it expires.
func (s *Service) InitiateSignature(ctx context.Context, sessionID id.SessionID, method models.SignatureMethod) (initiation *SignatureInitiation, err error) {
	ctx, finish := s.start(ctx, "InitiateSignature", sessionID)
	defer finish(&err)

	method = models.SignatureMethod(strings.ToLower(strings.TrimSpace(string(method))))
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidMethod, fmt.Sprintf("unsupported signature method %q", method))
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := s.signable(session); err != nil {
		return nil, err
	}

	challenge, err := s.signer.Initiate(ctx, method)
	if err != nil {
		return nil, s.providerError(ctx, "esign", dErrors.CodeProviderFailure, err)
	}
	proofHash, err := signature.HashProof(challenge.Proof)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to secure signature proof")
	}

	var pending *models.PendingSignature
	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := s.signable(session); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		pending = &models.PendingSignature{
			Reference: challenge.Reference,
			SessionID: sessionID,
			Method:    method,
			ProofHash: proofHash,
			ExpiresAt: now.Add(s.cfg.SignatureTTL).UTC(),
		}
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionSignatureInitiated, map[string]any{
			"method":    string(method),
			"reference": challenge.Reference,
		}, map[string]any{"method": string(method)}); err != nil {
			return err
		}
		session.SignatureMethod = string(method)
		session.UpdatedAt = now
		return s.save(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	// The reference is published only once the initiation is committed. A
	// failure here leaves an audited initiation with nothing to complete; the
	// subscriber initiates again.
	if err := s.signatures.Put(ctx, pending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store signature reference")
	}

	initiation = &SignatureInitiation{
		Reference: pending.Reference,
		Method:    method,
		ExpiresAt: pending.ExpiresAt,
	}
	if s.cfg.DemoProofs {
		initiation.DemoProof = challenge.Proof
	}
	return initiation, nil
}

// CompleteSignature redeems a reference with its proof. Completing an
// already-signed session is a no-op that returns the current snapshot.
func (s *Service) CompleteSignature(ctx context.Context, sessionID id.SessionID, reference, proof string) (snapshot *models.Snapshot, err error) {
	ctx, finish := s.start(ctx, "CompleteSignature", sessionID)
	defer finish(&err)

	reference = strings.TrimSpace(reference)
	if reference == "" || strings.TrimSpace(proof) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "reference and proof are required")
	}

	var consumed string

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if session.SignatureComplete {
			snapshot = session.Snapshot()
			return nil
		}
		if session.Status != models.StatusVerificationComplete {
			return dErrors.New(dErrors.CodeInvalidTransition, "signature requires a verified session")
		}

		pending, err := s.signatures.Get(ctx, reference)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
				return errInvalidProof
			}
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load signature reference")
		}
		now := requestcontext.Now(ctx)
		if pending.SessionID != sessionID || !now.Before(pending.ExpiresAt) {
			s.logger.WarnContext(ctx, "signature reference rejected",
				"session_id", sessionID.String(),
				"request_id", requestcontext.RequestID(ctx),
			)
			return errInvalidProof
		}
		if !signature.MatchProof(pending.ProofHash, proof) {
			return s.rejectProof(ctx, pending)
		}
		consumed = pending.Reference

		session.SignatureComplete = true
		session.SignatureMethod = string(pending.Method)
		session.Advance(models.StatusSignatureComplete, now)
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionSignatureCompleted, map[string]any{
			"method":    string(pending.Method),
			"reference": pending.Reference,
		}, map[string]any{"method": string(pending.Method)}); err != nil {
			return err
		}
		if err := s.save(ctx, session); err != nil {
			return err
		}
		s.metrics.IncTransition(string(models.StatusSignatureComplete))
		snapshot = session.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if consumed != "" {
		// The session is already signed, so a reference left behind by a
		// failed delete cannot complete anything and expires with its TTL.
		if err := s.signatures.Consume(ctx, consumed); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.WarnContext(ctx, "failed to consume signature reference",
				"session_id", sessionID.String(),
				"error", err,
			)
		}
	}
	return snapshot, nil
}

// rejectProof counts a wrong proof from the owning session. The reference
// stays usable until MaxProofAttempts is reached, then it is revoked.
func (s *Service) rejectProof(ctx context.Context, pending *models.PendingSignature) error {
	attempts, err := s.signatures.RecordFailure(ctx, pending)
	if err != nil && !errors.Is(err, sentinel.ErrExpired) {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to record signature attempt")
	}
	s.logger.WarnContext(ctx, "signature proof rejected",
		"session_id", pending.SessionID.String(),
		"attempts", attempts,
		"request_id", requestcontext.RequestID(ctx),
	)
	if attempts < signature.MaxProofAttempts {
		return dErrors.New(dErrors.CodeInvalidProof, "incorrect proof, please try again")
	}
	if err := s.signatures.Consume(ctx, pending.Reference); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to revoke signature reference")
	}
	return dErrors.New(dErrors.CodeInvalidProof, "too many incorrect proofs, start the signature again")
}

// signable checks the session may start an e-sign. When the risk gate is
// enforced, Medium requires a completed VCIP and High additionally EDD clearance.
func (s *Service) signable(session *models.Session) error {
	if session.SignatureComplete || session.Status != models.StatusVerificationComplete {
		return dErrors.New(dErrors.CodeInvalidTransition, "signature can only start once verification is complete")
	}
	if !s.cfg.RiskGateEnforced {
		return nil
	}
	if risk.RequiresEnhancedVideoVerification(session.RiskLevel) {
		if done, _ := session.Profile.Flag(profile.KeyVCIPCompleted); !done {
			return dErrors.New(dErrors.CodePreconditionFailed, "video KYC must be completed before signing")
		}
	}
	if risk.RequiresEnhancedDueDiligence(session.RiskLevel) {
		if cleared, _ := session.Profile.Flag(profile.KeyEDDCleared); !cleared {
			return dErrors.New(dErrors.CodePreconditionFailed, "enhanced due diligence must be cleared before signing")
		}
	}
	return nil
}
