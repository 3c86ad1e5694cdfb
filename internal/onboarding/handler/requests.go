package handler

import (
	"strings"

	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/providers"
)

type startRequest struct {
	AccountType string `json:"account_type"`
	Language    string `json:"language"`
}

func (r startRequest) toService() service.StartRequest {
	accountType := models.AccountType(strings.ToLower(strings.TrimSpace(r.AccountType)))
	if accountType == "" {
		accountType = models.AccountTypeCitizen
	}
	return service.StartRequest{
		AccountType: accountType,
		Language:    strings.TrimSpace(r.Language),
	}
}

type resumeRequest struct {
	ResumeToken string `json:"resume_token"`
}

type updateRequest struct {
	Fields  map[string]any `json:"fields"`
	Advance bool           `json:"advance"`
}

type verifyRequest struct {
	Method     string         `json:"method"`
	PAN        string         `json:"pan"`
	Aadhaar    string         `json:"aadhaar"`
	Fields     map[string]any `json:"fields"`
	Confidence *float64       `json:"confidence"`
}

func (r verifyRequest) toService() (models.VerificationMethod, providers.VerificationInput) {
	return models.VerificationMethod(strings.ToLower(strings.TrimSpace(r.Method))), providers.VerificationInput{
		PAN:        strings.TrimSpace(r.PAN),
		Aadhaar:    strings.TrimSpace(r.Aadhaar),
		Fields:     r.Fields,
		Confidence: r.Confidence,
	}
}

type consentRequest struct {
	ConsentType string         `json:"consent_type"`
	Text        string         `json:"consent_text"`
	Metadata    map[string]any `json:"metadata"`
}

type signatureInitiateRequest struct {
	Method string `json:"method"`
}

type signatureVerifyRequest struct {
	Reference string `json:"reference"`
	Proof     string `json:"proof"`
}

type paymentRequest struct {
	Method string  `json:"method"`
	Amount float64 `json:"amount"`
	VPA    string  `json:"vpa"`
}

func (r paymentRequest) toService() service.PaymentRequest {
	return service.PaymentRequest{
		Method: models.PaymentMethod(strings.ToLower(strings.TrimSpace(r.Method))),
		Amount: r.Amount,
		VPA:    strings.TrimSpace(r.VPA),
	}
}

type agentEventRequest struct {
	AgentID string         `json:"agent_id"`
	Kind    string         `json:"event_type"`
	Details map[string]any `json:"details"`
}
