package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"onboard/internal/audit"
	"onboard/internal/notify"
	"onboard/internal/onboarding/models"
	"onboard/internal/profile"
	"onboard/internal/providers"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/hashing"
	"onboard/pkg/requestcontext"
)

// aadhaarKeys are stripped from stored fields; only the last four digits are kept.
var aadhaarKeys = []string{"aadhaar", "aadhaar_number"}

// Verify runs the provider for method and records the result. A provider
// failure leaves the session untouched and writes no audit entry.
func (s *Service) Verify(ctx context.Context, sessionID id.SessionID, method models.VerificationMethod, in providers.VerificationInput) (*VerificationOutcome, error) {
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidMethod, fmt.Sprintf("unsupported verification method %q", method))
	}
	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := verificationAllowed(session); err != nil {
		return nil, err
	}
	provider, ok := s.verifiers[method]
	if !ok {
		return nil, dErrors.New(dErrors.CodeInvalidMethod, fmt.Sprintf("verification method %q is not available", method))
	}

	result, err := provider.Verify(ctx, in)
	if err != nil {
		return nil, s.providerError(ctx, string(method), dErrors.CodeVerificationFailed, err)
	}
	fields := result.Fields
	if in.Aadhaar != "" {
		fields = withAadhaar(fields, in.Aadhaar)
	}
	return s.RecordVerification(ctx, sessionID, method, fields, result.Confidence)
}

// RecordVerification stores a completed verification, re-runs risk and
// advances the session to verification_complete. Re-verification is allowed
// until the subscriber has signed.
func (s *Service) RecordVerification(ctx context.Context, sessionID id.SessionID, method models.VerificationMethod, fields map[string]any, confidence float64) (outcome *VerificationOutcome, err error) {
	ctx, finish := s.start(ctx, "RecordVerification", sessionID)
	defer finish(&err)

	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidMethod, fmt.Sprintf("unsupported verification method %q", method))
	}
	if confidence < 0 || confidence > 100 {
		return nil, dErrors.New(dErrors.CodeValidation, "confidence must be between 0 and 100")
	}
	if err := profile.ValidateFields(fields); err != nil {
		return nil, err
	}
	fields, aadhaarLast4 := stripAadhaar(fields)

	var session *models.Session
	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		var err error
		session, err = s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := verificationAllowed(session); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		taxID := taxIDFrom(fields, session.Profile)
		record := &models.VerificationRecord{
			ID:                 id.NewVerificationID(),
			SessionID:          sessionID,
			Method:             method,
			Fields:             fields,
			Confidence:         confidence,
			ContentHash:        hashing.ContentHash(fields),
			TaxID:              taxID,
			AadhaarLast4:       aadhaarLast4,
			TaxIDValid:         models.ValidPAN(taxID),
			CKYCUploadDeadline: now.Add(s.cfg.CKYCUploadDeadline).UTC(),
			CreatedAt:          now.UTC(),
		}

		updates := map[string]any{
			profile.KeyVerificationMethod: string(method),
			profile.KeyConfidence:         confidence,
		}
		if _, has := session.Profile.String(profile.KeyPAN); !has && record.TaxIDValid {
			updates[profile.KeyPAN] = taxID
		}
		session.Profile = session.Profile.Merge(updates)
		session.VerificationMethod = string(method)

		pending := 0
		if pan, ok := session.Profile.String(profile.KeyPAN); ok && pan == taxID {
			pending = 1
		}
		assessment := s.assess(ctx, session, &confidence, pending)
		advanced := session.Advance(models.StatusVerificationComplete, now)

		reviewPending := method == models.VerificationManual
		meta := riskMetadata(assessment)
		meta["method"] = string(method)
		meta["confidence"] = confidence
		meta["record_hash"] = record.ContentHash
		meta["review_pending"] = reviewPending
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionVerificationCompleted, map[string]any{
			"record_id":    record.ID.String(),
			"method":       string(method),
			"confidence":   confidence,
			"content_hash": record.ContentHash,
		}, meta); err != nil {
			return err
		}
		if err := s.verifications.Create(ctx, record); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store verification record")
		}
		if err := s.save(ctx, session); err != nil {
			return err
		}
		if advanced {
			s.metrics.IncTransition(string(models.StatusVerificationComplete))
		}

		outcome = &VerificationOutcome{
			RecordID:           record.ID,
			Method:             method,
			Confidence:         confidence,
			TaxIDValid:         record.TaxIDValid,
			CKYCUploadDeadline: record.CKYCUploadDeadline,
			Assessment:         assessment,
			Status:             session.Status,
			ReviewPending:      reviewPending,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.emit(ctx, session, notify.EventVerificationCompleted, map[string]string{
		"method":         string(method),
		"risk_level":     string(outcome.Assessment.Level),
		"review_pending": strconv.FormatBool(outcome.ReviewPending),
	})
	return outcome, nil
}

// LookupRegistry queries the KYC registry for pan and records the lookup.
// An unregistered PAN is a successful lookup with Found false.
func (s *Service) LookupRegistry(ctx context.Context, sessionID id.SessionID, pan string) (record *providers.RegistryRecord, err error) {
	ctx, finish := s.start(ctx, "LookupRegistry", sessionID)
	defer finish(&err)

	pan = models.NormalizePAN(pan)
	if !models.ValidPAN(pan) {
		return nil, dErrors.New(dErrors.CodeValidation, "pan must match AAAAA9999A")
	}
	if _, err := s.load(ctx, sessionID); err != nil {
		return nil, err
	}

	record, err = s.registry.Lookup(ctx, pan)
	if err != nil {
		if providers.GetCategory(err) != providers.ErrorNotFound {
			return nil, s.providerError(ctx, "ckyc", dErrors.CodeProviderFailure, err)
		}
		record = &providers.RegistryRecord{PAN: pan, Found: false, CheckedAt: requestcontext.Now(ctx).UTC()}
	}

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		if _, err := s.load(ctx, sessionID); err != nil {
			return err
		}
		_, err := s.audit.Append(ctx, sessionID, audit.ActionExternalLookup, map[string]any{
			"registry": "ckyc",
			"pan":      pan,
			"found":    record.Found,
		}, map[string]any{"registry": "ckyc", "found": record.Found})
		return err
	})
	if err != nil {
		return nil, err
	}
	return record, nil
}

func verificationAllowed(session *models.Session) error {
	switch session.Status {
	case models.StatusProfileCaptured, models.StatusVerificationComplete:
		return nil
	case models.StatusStarted:
		return dErrors.New(dErrors.CodeInvalidTransition, "profile must be captured before verification")
	default:
		return dErrors.New(dErrors.CodeInvalidTransition, "verification is closed once signing has completed")
	}
}

// taxIDFrom prefers the PAN in the verified fields over the declared one.
func taxIDFrom(fields map[string]any, p profile.Profile) string {
	if v, ok := fields[profile.KeyPAN].(string); ok && strings.TrimSpace(v) != "" {
		return models.NormalizePAN(v)
	}
	if v, ok := p.String(profile.KeyPAN); ok {
		return models.NormalizePAN(v)
	}
	return ""
}

func withAadhaar(fields map[string]any, aadhaar string) map[string]any {
	out := make(map[string]any, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out["aadhaar"] = aadhaar
	return out
}

// stripAadhaar removes full Aadhaar numbers and returns the last four digits.
func stripAadhaar(fields map[string]any) (map[string]any, string) {
	out := make(map[string]any, len(fields))
	last4 := ""
	for k, v := range fields {
		out[k] = v
	}
	for _, key := range aadhaarKeys {
		if v, ok := out[key]; ok {
			if number, isString := v.(string); isString && models.ValidAadhaar(number) {
				last4 = models.AadhaarLast4(number)
			}
			delete(out, key)
		}
	}
	if v, ok := out["aadhaar_last4"].(string); ok && last4 == "" {
		last4 = v
	}
	if last4 != "" {
		out["aadhaar_last4"] = last4
	}
	return out, last4
}
