package models

import (
	"strings"
	"time"

	id "onboard/pkg/domain"
)

// VerificationMethod is the channel through which identity was established.
type VerificationMethod string

const (
	VerificationCKYC       VerificationMethod = "ckyc"
	VerificationDigiLocker VerificationMethod = "digilocker"
	VerificationSmartScan  VerificationMethod = "smartscan"
	VerificationManual     VerificationMethod = "manual"
)

func (m VerificationMethod) IsValid() bool {
	switch m {
	case VerificationCKYC, VerificationDigiLocker, VerificationSmartScan, VerificationManual:
		return true
	}
	return false
}

// VerificationRecord is one completed identity-verification attempt. It is
// never mutated after creation.
type VerificationRecord struct {
	ID                 id.VerificationID
	SessionID          id.SessionID
	Method             VerificationMethod
	Fields             map[string]any
	Confidence         float64
	ContentHash        string
	TaxID              string
	AadhaarLast4       string
	TaxIDValid         bool
	CKYCUploadDeadline time.Time
	CreatedAt          time.Time
}

// SignatureMethod is the e-sign channel.
type SignatureMethod string

const (
	SignatureAadhaarOTP SignatureMethod = "aadhaar"
	SignatureDSC        SignatureMethod = "dsc"
)

func (m SignatureMethod) IsValid() bool {
	return m == SignatureAadhaarOTP || m == SignatureDSC
}

// PendingSignature is a single-use capability issued at signature initiation.
// Only a hash of the expected proof is kept.
type PendingSignature struct {
	Reference string
	SessionID id.SessionID
	Method    SignatureMethod
	ProofHash string
	ExpiresAt time.Time
}

// PaymentMethod is the contribution payment channel.
type PaymentMethod string

const (
	PaymentUPI        PaymentMethod = "upi"
	PaymentUPILite    PaymentMethod = "upi-lite"
	PaymentNetBanking PaymentMethod = "netbanking"
	PaymentCard       PaymentMethod = "card"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentUPI, PaymentUPILite, PaymentNetBanking, PaymentCard:
		return true
	}
	return false
}

// PaymentStatus tracks a contribution through the gateway.
type PaymentStatus string

const (
	PaymentInitiated PaymentStatus = "initiated"
	PaymentCompleted PaymentStatus = "completed"
)

// Tier is the pension account tier the contribution is made into.
type Tier string

const (
	TierI  Tier = "I"
	TierII Tier = "II"
)

// ParseTier accepts "I", "1", "tier1", "Tier II" and similar spellings.
// Unknown values fall back to Tier I, the stricter minimum.
func ParseTier(raw string) Tier {
	t := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(raw), " ", ""))
	t = strings.TrimPrefix(t, "TIER")
	switch t {
	case "II", "2":
		return TierII
	default:
		return TierI
	}
}

// MinimumContribution is the regulatory floor for a first contribution.
func (t Tier) MinimumContribution() float64 {
	if t == TierII {
		return 250
	}
	return 500
}

// Payment is a contribution attempt.
type Payment struct {
	ID          id.PaymentID
	SessionID   id.SessionID
	Method      PaymentMethod
	Amount      float64
	Tier        Tier
	VPA         string
	GatewayRef  string
	Status      PaymentStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
}

// ConsentType is the channel a consent was captured through.
type ConsentType string

const (
	ConsentSMS     ConsentType = "sms"
	ConsentEmail   ConsentType = "email"
	ConsentAadhaar ConsentType = "aadhaar"
	ConsentVoice   ConsentType = "voice"
	ConsentVCIP    ConsentType = "vcip"
)

func (c ConsentType) IsValid() bool {
	switch c {
	case ConsentSMS, ConsentEmail, ConsentAadhaar, ConsentVoice, ConsentVCIP:
		return true
	}
	return false
}

// ConsentArtifact is an archived, hashed record of a subscriber's consent.
type ConsentArtifact struct {
	ID           id.ConsentID
	SessionID    id.SessionID
	Type         ConsentType
	Text         string
	ArtifactHash string
	Metadata     map[string]any
	IPAddress    string
	UserAgent    string
	CreatedAt    time.Time
}
