package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/profile"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	"onboard/pkg/requestcontext"
)

// InitiatePayment opens the first contribution with the gateway. The amount
// must meet the minimum of the tier declared in the profile.
func (s *Service) InitiatePayment(ctx context.Context, sessionID id.SessionID, req PaymentRequest) (initiation *PaymentInitiation, err error) {
	ctx, finish := s.start(ctx, "InitiatePayment", sessionID)
	defer finish(&err)

	method := models.PaymentMethod(strings.ToLower(strings.TrimSpace(string(req.Method))))
	if !method.IsValid() {
		return nil, dErrors.New(dErrors.CodeInvalidMethod, fmt.Sprintf("unsupported payment method %q", req.Method))
	}
	vpa := strings.TrimSpace(req.VPA)
	if method == models.PaymentUPI || method == models.PaymentUPILite {
		if !models.ValidVPA(vpa) {
			return nil, dErrors.New(dErrors.CodeValidation, "a valid UPI address is required")
		}
	} else {
		vpa = ""
	}

	session, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := payable(session); err != nil {
		return nil, err
	}
	tier := tierOf(session)
	if req.Amount < tier.MinimumContribution() {
		return nil, dErrors.New(dErrors.CodeBelowMinimum,
			fmt.Sprintf("minimum contribution for Tier %s is %.0f", tier, tier.MinimumContribution()))
	}

	gatewayRef, err := s.gateway.Initiate(ctx, method, req.Amount)
	if err != nil {
		return nil, s.providerError(ctx, "gateway", dErrors.CodeProviderFailure, err)
	}

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		if err := payable(session); err != nil {
			return err
		}

		now := requestcontext.Now(ctx)
		payment := &models.Payment{
			ID:         id.NewPaymentID(),
			SessionID:  sessionID,
			Method:     method,
			Amount:     req.Amount,
			Tier:       tier,
			VPA:        vpa,
			GatewayRef: gatewayRef,
			Status:     models.PaymentInitiated,
			CreatedAt:  now.UTC(),
		}
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionPaymentInitiated, map[string]any{
			"payment_id":  payment.ID.String(),
			"method":      string(method),
			"amount":      req.Amount,
			"tier":        string(tier),
			"gateway_ref": gatewayRef,
		}, map[string]any{"method": string(method), "tier": string(tier)}); err != nil {
			return err
		}
		if err := s.payments.Create(ctx, payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to store payment")
		}
		session.PaymentMethod = string(method)
		session.UpdatedAt = now
		if err := s.save(ctx, session); err != nil {
			return err
		}

		initiation = &PaymentInitiation{
			PaymentID:  payment.ID,
			GatewayRef: gatewayRef,
			Method:     method,
			Amount:     payment.Amount,
			Tier:       tier,
			Status:     payment.Status,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return initiation, nil
}

// ConfirmPayment settles an initiated payment and advances the session to
// payment_complete.
func (s *Service) ConfirmPayment(ctx context.Context, sessionID id.SessionID, paymentID id.PaymentID) (snapshot *models.Snapshot, err error) {
	ctx, finish := s.start(ctx, "ConfirmPayment", sessionID)
	defer finish(&err)

	payment, err := s.loadPayment(ctx, sessionID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.Status == models.PaymentCompleted {
		return nil, dErrors.New(dErrors.CodeConflict, "payment already confirmed")
	}

	settled, err := s.gateway.Confirm(ctx, payment.GatewayRef)
	if err != nil {
		return nil, s.providerError(ctx, "gateway", dErrors.CodeProviderFailure, err)
	}
	if !settled {
		s.metrics.IncProviderFailure("gateway")
		return nil, dErrors.New(dErrors.CodeProviderFailure, "payment was not settled by the gateway")
	}

	err = s.tx.RunInTx(ctx, sessionID, func(ctx context.Context) error {
		session, err := s.load(ctx, sessionID)
		if err != nil {
			return err
		}
		payment, err := s.loadPayment(ctx, sessionID, paymentID)
		if err != nil {
			return err
		}
		if payment.Status == models.PaymentCompleted {
			return dErrors.New(dErrors.CodeConflict, "payment already confirmed")
		}
		if err := payable(session); err != nil {
			return err
		}

		now := requestcontext.Now(ctx).UTC()
		payment.Status = models.PaymentCompleted
		payment.CompletedAt = &now
		if _, err := s.audit.Append(ctx, sessionID, audit.ActionPaymentCompleted, map[string]any{
			"payment_id":  payment.ID.String(),
			"amount":      payment.Amount,
			"tier":        string(payment.Tier),
			"gateway_ref": payment.GatewayRef,
		}, map[string]any{"method": string(payment.Method)}); err != nil {
			return err
		}
		if err := s.payments.Save(ctx, payment); err != nil {
			return dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to save payment")
		}
		session.Advance(models.StatusPaymentComplete, now)
		if err := s.save(ctx, session); err != nil {
			return err
		}
		s.metrics.IncTransition(string(models.StatusPaymentComplete))
		snapshot = session.Snapshot()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

// loadPayment reads a payment and hides payments of other sessions.
func (s *Service) loadPayment(ctx context.Context, sessionID id.SessionID, paymentID id.PaymentID) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStorageFailure, "failed to load payment")
	}
	if payment.SessionID != sessionID {
		return nil, dErrors.New(dErrors.CodeNotFound, "payment not found")
	}
	return payment, nil
}

func payable(session *models.Session) error {
	if session.Status != models.StatusSignatureComplete || !session.SignatureComplete {
		return dErrors.New(dErrors.CodeInvalidTransition, "payment requires a completed signature")
	}
	return nil
}

func tierOf(session *models.Session) models.Tier {
	if raw, ok := session.Profile.String(profile.KeyTier); ok {
		return models.ParseTier(raw)
	}
	if n, ok := session.Profile.Number(profile.KeyTier); ok {
		return models.ParseTier(fmt.Sprintf("%.0f", n))
	}
	return models.TierI
}
