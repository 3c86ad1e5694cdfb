// Package providers holds the external collaborators the onboarding state
// machine consumes: identity verification channels, the KYC registry, the
// payment gateway and the e-sign service. The implementations here are
// simulated and deterministic.
package providers

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"maps"
	"strings"

	"onboard/internal/onboarding/models"
)

// VerificationInput is what the subscriber supplied for one verification attempt.
type VerificationInput struct {
	PAN        string
	Aadhaar    string
	Fields     map[string]any
	Confidence *float64
}

// VerificationResult is a verified field bundle. Confidence is 0 to 100.
type VerificationResult struct {
	Method     models.VerificationMethod
	Fields     map[string]any
	Confidence float64
}

// VerificationProvider establishes identity through one channel.
type VerificationProvider interface {
	Verify(ctx context.Context, in VerificationInput) (*VerificationResult, error)
}

// CKYCProvider fetches a KYC bundle from the central registry by PAN.
type CKYCProvider struct {
	Registry RegistryProvider
}

func (p CKYCProvider) Verify(ctx context.Context, in VerificationInput) (*VerificationResult, error) {
	record, err := p.Registry.Lookup(ctx, in.PAN)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"pan":         record.PAN,
		"ckyc_number": record.CKYCNumber,
		"full_name":   record.FullName,
		"dob":         record.DateOfBirth,
	}
	return &VerificationResult{Method: models.VerificationCKYC, Fields: fields, Confidence: 100}, nil
}

// DigiLockerProvider pulls an Aadhaar-linked document bundle.
type DigiLockerProvider struct{}

func (DigiLockerProvider) Verify(ctx context.Context, in VerificationInput) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "digilocker", "request cancelled", err)
	}
	if !models.ValidAadhaar(in.Aadhaar) {
		return nil, NewProviderError(ErrorBadData, "digilocker", "aadhaar number is malformed", nil)
	}
	fields := maps.Clone(in.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	fields["aadhaar_last4"] = models.AadhaarLast4(in.Aadhaar)
	if pan := models.NormalizePAN(in.PAN); pan != "" {
		fields["pan"] = pan
	}
	return &VerificationResult{Method: models.VerificationDigiLocker, Fields: fields, Confidence: 98}, nil
}

// smartScanRequired are the fields the document classifier is expected to extract.
var smartScanRequired = []string{"full_name", "dob", "pan"}

// SmartScanProvider stands in for the document extraction classifier. It
// scores the supplied extraction by completeness unless a score is given.
type SmartScanProvider struct{}

func (SmartScanProvider) Verify(ctx context.Context, in VerificationInput) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "smartscan", "request cancelled", err)
	}
	if len(in.Fields) == 0 {
		return nil, NewProviderError(ErrorBadData, "smartscan", "no fields extracted from document", nil)
	}
	fields := maps.Clone(in.Fields)
	if pan := models.NormalizePAN(in.PAN); pan != "" {
		fields["pan"] = pan
	}

	confidence := 95.0
	for _, key := range smartScanRequired {
		if v, ok := fields[key]; !ok || strings.TrimSpace(fmt.Sprint(v)) == "" {
			confidence -= 15
		}
	}
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	return &VerificationResult{Method: models.VerificationSmartScan, Fields: fields, Confidence: clampConfidence(confidence)}, nil
}

// ManualProvider accepts an uploaded document for later back-office review.
type ManualProvider struct {
	DefaultConfidence float64
}

func (p ManualProvider) Verify(ctx context.Context, in VerificationInput) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "manual", "request cancelled", err)
	}
	fields := maps.Clone(in.Fields)
	if fields == nil {
		fields = map[string]any{}
	}
	if pan := models.NormalizePAN(in.PAN); pan != "" {
		fields["pan"] = pan
	}
	confidence := p.DefaultConfidence
	if in.Confidence != nil {
		confidence = *in.Confidence
	}
	return &VerificationResult{Method: models.VerificationManual, Fields: fields, Confidence: clampConfidence(confidence)}, nil
}

func clampConfidence(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}

// digits derives a stable numeric string of length n from seed.
func digits(seed string, n int) string {
	sum := sha256.Sum256([]byte(seed))
	v := binary.BigEndian.Uint64(sum[:8])
	s := fmt.Sprintf("%020d", v)
	return s[len(s)-n:]
}
