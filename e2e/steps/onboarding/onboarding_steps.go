package onboarding

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetSessionID() string
	SetSessionID(sessionID string)
	GetResumeToken() string
	SetResumeToken(token string)
	Remember(key, value string)
	Recall(key string) string
	PAN() string
}

// RegisterSteps registers the subscriber journey steps
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &onboardingSteps{tc: tc}

	ctx.Step(`^I start a "([^"]*)" onboarding session$`, steps.startSession)
	ctx.Step(`^I resume the session with my resume token$`, steps.resumeSession)
	ctx.Step(`^I forget my session$`, steps.forgetSession)
	ctx.Step(`^I check my session status$`, steps.checkStatus)
	ctx.Step(`^I submit a standard profile$`, steps.submitStandardProfile)
	ctx.Step(`^I submit a profile declaring I am a politically exposed person$`, steps.submitPEPProfile)
	ctx.Step(`^I verify my identity via "([^"]*)"$`, steps.verifyIdentity)
	ctx.Step(`^I initiate an e-sign with "([^"]*)"$`, steps.initiateSignature)
	ctx.Step(`^I complete the e-sign with the demo proof$`, steps.completeSignature)
	ctx.Step(`^I complete the e-sign with proof "([^"]*)"$`, steps.completeSignatureWithProof)
	ctx.Step(`^I pay (\d+) by "([^"]*)"$`, steps.initiatePayment)
	ctx.Step(`^I confirm the payment$`, steps.confirmPayment)
	ctx.Step(`^I request my account number$`, steps.requestAccountNumber)
	ctx.Step(`^I archive an "([^"]*)" consent$`, steps.archiveConsent)
	ctx.Step(`^I have completed onboarding$`, steps.completeOnboarding)
}

type onboardingSteps struct {
	tc TestContext
}

func (s *onboardingSteps) startSession(ctx context.Context, accountType string) error {
	if err := s.tc.POST("/api/session/start", map[string]any{"account_type": accountType, "language": "en"}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("start failed: %d %s", s.tc.GetLastResponseStatus(), s.tc.GetLastResponseBody())
	}
	sessionID, err := s.stringField("session_id")
	if err != nil {
		return err
	}
	token, err := s.stringField("resume_token")
	if err != nil {
		return err
	}
	s.tc.SetSessionID(sessionID)
	s.tc.SetResumeToken(token)
	return nil
}

func (s *onboardingSteps) resumeSession(ctx context.Context) error {
	return s.tc.POST("/api/session/resume", map[string]any{"resume_token": s.tc.GetResumeToken()})
}

func (s *onboardingSteps) forgetSession(ctx context.Context) error {
	s.tc.Remember("session_id", s.tc.GetSessionID())
	s.tc.SetSessionID("")
	return nil
}

func (s *onboardingSteps) checkStatus(ctx context.Context) error {
	return s.tc.GET("/api/session/status", nil)
}

func (s *onboardingSteps) submitStandardProfile(ctx context.Context) error {
	return s.updateProfile(map[string]any{
		"full_name":           "Asha Verma",
		"age":                 34,
		"pep":                 "no",
		"tax_resident":        "no",
		"contribution_amount": 5000,
		"tier":                "I",
		"pan":                 s.tc.PAN(),
	})
}

func (s *onboardingSteps) submitPEPProfile(ctx context.Context) error {
	return s.updateProfile(map[string]any{
		"age":          52,
		"pep":          "yes",
		"tax_resident": "no",
		"tier":         "I",
		"pan":          s.tc.PAN(),
	})
}

func (s *onboardingSteps) updateProfile(fields map[string]any) error {
	return s.tc.POST("/api/session/update", map[string]any{"fields": fields, "advance": true})
}

func (s *onboardingSteps) verifyIdentity(ctx context.Context, method string) error {
	return s.tc.POST("/api/kyc/verify", map[string]any{
		"method":  method,
		"pan":     s.tc.PAN(),
		"aadhaar": "234123412346",
	})
}

func (s *onboardingSteps) initiateSignature(ctx context.Context, method string) error {
	if err := s.tc.POST("/api/esign/initiate", map[string]any{"method": method}); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() != 200 {
		return nil
	}
	reference, err := s.stringField("reference")
	if err != nil {
		return err
	}
	s.tc.Remember("esign_reference", reference)
	if proof, err := s.stringField("demo_proof"); err == nil {
		s.tc.Remember("esign_proof", proof)
	}
	return nil
}

func (s *onboardingSteps) completeSignature(ctx context.Context) error {
	proof := s.tc.Recall("esign_proof")
	if proof == "" {
		return fmt.Errorf("server did not return a demo proof; enable ESIGN_DEMO_PROOFS")
	}
	return s.completeSignatureWithProof(ctx, proof)
}

func (s *onboardingSteps) completeSignatureWithProof(ctx context.Context, proof string) error {
	return s.tc.POST("/api/esign/verify", map[string]any{
		"reference": s.tc.Recall("esign_reference"),
		"proof":     proof,
	})
}

func (s *onboardingSteps) initiatePayment(ctx context.Context, amount int, method string) error {
	body := map[string]any{"method": method, "amount": amount}
	if method == "upi" || method == "upi-lite" {
		body["vpa"] = "asha@okbank"
	}
	if err := s.tc.POST("/api/payment/initiate", body); err != nil {
		return err
	}
	if s.tc.GetLastResponseStatus() == 201 {
		paymentID, err := s.stringField("payment_id")
		if err != nil {
			return err
		}
		s.tc.Remember("payment_id", paymentID)
	}
	return nil
}

func (s *onboardingSteps) confirmPayment(ctx context.Context) error {
	return s.tc.POST("/api/payment/confirm/"+s.tc.Recall("payment_id"), nil)
}

func (s *onboardingSteps) requestAccountNumber(ctx context.Context) error {
	return s.tc.POST("/api/payment/generate-pran", nil)
}

func (s *onboardingSteps) archiveConsent(ctx context.Context, consentType string) error {
	return s.tc.POST("/api/kyc/consent/archive", map[string]any{
		"consent_type": consentType,
		"consent_text": "I consent to the processing of my KYC records for NPS enrolment.",
	})
}

// completeOnboarding drives a fresh session to completion.
func (s *onboardingSteps) completeOnboarding(ctx context.Context) error {
	steps := []func() error{
		func() error { return s.startSession(ctx, "citizen") },
		func() error { return s.submitStandardProfile(ctx) },
		func() error { return s.verifyIdentity(ctx, "ckyc") },
		func() error { return s.initiateSignature(ctx, "aadhaar") },
		func() error { return s.completeSignature(ctx) },
		func() error { return s.initiatePayment(ctx, 1000, "upi") },
		func() error { return s.confirmPayment(ctx) },
		func() error { return s.requestAccountNumber(ctx) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			return err
		}
		if status := s.tc.GetLastResponseStatus(); status >= 300 {
			return fmt.Errorf("onboarding step %d failed: %d %s", i+1, status, s.tc.GetLastResponseBody())
		}
	}
	return nil
}

func (s *onboardingSteps) stringField(field string) (string, error) {
	v, err := s.tc.GetResponseField(field)
	if err != nil {
		return "", err
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", fmt.Errorf("field %q is not a string: %v", field, v)
	}
	return str, nil
}
