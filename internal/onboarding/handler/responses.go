package handler

import (
	"time"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/risk"
)

type assessmentResponse struct {
	RiskLevel    risk.Level `json:"risk_level"`
	RiskReasons  []string   `json:"risk_reasons"`
	RequiresVCIP bool       `json:"requires_vcip"`
	RequiresEDD  bool       `json:"requires_edd"`
}

func toAssessmentResponse(a *risk.Assessment) assessmentResponse {
	reasons := a.Reasons
	if reasons == nil {
		reasons = []string{}
	}
	return assessmentResponse{
		RiskLevel:    a.Level,
		RiskReasons:  reasons,
		RequiresVCIP: risk.RequiresEnhancedVideoVerification(a.Level),
		RequiresEDD:  risk.RequiresEnhancedDueDiligence(a.Level),
	}
}

type verificationResponse struct {
	RecordID           string        `json:"record_id"`
	Method             string        `json:"method"`
	Confidence         float64       `json:"confidence"`
	TaxIDValid         bool          `json:"pan_valid"`
	CKYCUploadDeadline time.Time     `json:"ckyc_upload_deadline"`
	Status             models.Status `json:"status"`
	ReviewPending      bool          `json:"review_pending"`
	assessmentResponse
}

func toVerificationResponse(o *service.VerificationOutcome) verificationResponse {
	return verificationResponse{
		RecordID:           o.RecordID.String(),
		Method:             string(o.Method),
		Confidence:         o.Confidence,
		TaxIDValid:         o.TaxIDValid,
		CKYCUploadDeadline: o.CKYCUploadDeadline,
		Status:             o.Status,
		ReviewPending:      o.ReviewPending,
		assessmentResponse: toAssessmentResponse(&o.Assessment),
	}
}

type signatureInitiationResponse struct {
	Reference string    `json:"reference"`
	Method    string    `json:"method"`
	ExpiresAt time.Time `json:"expires_at"`
	DemoProof string    `json:"demo_proof,omitempty"`
}

type paymentInitiationResponse struct {
	PaymentID  string               `json:"payment_id"`
	GatewayRef string               `json:"gateway_ref"`
	Method     string               `json:"method"`
	Amount     float64              `json:"amount"`
	Tier       models.Tier          `json:"tier"`
	Status     models.PaymentStatus `json:"status"`
}

type accountResponse struct {
	AccountNumber string `json:"pran"`
}

type consentResponse struct {
	ConsentID    string    `json:"consent_id"`
	ConsentType  string    `json:"consent_type"`
	ArtifactHash string    `json:"artifact_hash"`
	CapturedAt   time.Time `json:"captured_at"`
}

type agentEventResponse struct {
	Sequence  int64        `json:"sequence"`
	Action    audit.Action `json:"action"`
	ChainHash string       `json:"chain_hash"`
}
