package service

import (
	"time"

	"onboard/internal/onboarding/models"
	"onboard/internal/risk"
	id "onboard/pkg/domain"
)

type StartRequest struct {
	AccountType models.AccountType
	Language    string
}

// ProfileUpdate merges Fields into the profile. Advance is the explicit
// request to move a started session to profile_captured.
type ProfileUpdate struct {
	Fields  map[string]any
	Advance bool
}

// VerificationOutcome summarises a recorded verification.
type VerificationOutcome struct {
	RecordID           id.VerificationID
	Method             models.VerificationMethod
	Confidence         float64
	TaxIDValid         bool
	CKYCUploadDeadline time.Time
	Assessment         risk.Assessment
	Status             models.Status
	ReviewPending      bool
}

// SignatureInitiation is returned when an e-sign starts. DemoProof is only
// populated when the service is configured for simulated signers.
type SignatureInitiation struct {
	Reference string
	Method    models.SignatureMethod
	ExpiresAt time.Time
	DemoProof string
}

type PaymentRequest struct {
	Method models.PaymentMethod
	Amount float64
	VPA    string
}

type PaymentInitiation struct {
	PaymentID  id.PaymentID
	GatewayRef string
	Method     models.PaymentMethod
	Amount     float64
	Tier       models.Tier
	Status     models.PaymentStatus
}

type ConsentRequest struct {
	Type     models.ConsentType
	Text     string
	Metadata map[string]any
}

// AgentEvent attributes an assisted-channel action to an agent.
type AgentEvent struct {
	AgentID string
	Kind    string
	Details map[string]any
}
