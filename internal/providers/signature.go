package providers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
)

// SignatureChallenge is issued when an e-sign starts. Proof is what the
// subscriber must present back: the Aadhaar OTP or the DSC token.
type SignatureChallenge struct {
	Reference string
	Proof     string
}

// SignatureProvider starts Aadhaar OTP or DSC e-sign flows.
type SignatureProvider interface {
	Initiate(ctx context.Context, method models.SignatureMethod) (*SignatureChallenge, error)
}

// SimulatedSigner generates a random 6 digit OTP or a 32 hex character DSC token.
type SimulatedSigner struct{}

func (SimulatedSigner) Initiate(ctx context.Context, method models.SignatureMethod) (*SignatureChallenge, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewProviderError(ErrorTimeout, "esign", "initiation cancelled", err)
	}
	reference := "ESIGN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])

	switch method {
	case models.SignatureAadhaarOTP:
		n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
		if err != nil {
			return nil, NewProviderError(ErrorInternal, "esign", "otp generation failed", err)
		}
		return &SignatureChallenge{Reference: reference, Proof: fmt.Sprintf("%06d", n.Int64())}, nil
	case models.SignatureDSC:
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return nil, NewProviderError(ErrorInternal, "esign", "token generation failed", err)
		}
		return &SignatureChallenge{Reference: reference, Proof: hex.EncodeToString(buf)}, nil
	default:
		return nil, NewProviderError(ErrorBadData, "esign", "unsupported signature method", nil)
	}
}
