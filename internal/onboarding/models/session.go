// Package models defines the onboarding aggregate and the records it references.
package models

import (
	"slices"
	"time"

	"onboard/internal/profile"
	"onboard/internal/risk"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
)

// Status is a stored lifecycle state. States only ever move forward.
type Status string

const (
	StatusStarted              Status = "started"
	StatusProfileCaptured      Status = "profile_captured"
	StatusVerificationComplete Status = "verification_complete"
	StatusSignatureComplete    Status = "signature_complete"
	StatusPaymentComplete      Status = "payment_complete"
	StatusCompleted            Status = "completed"
)

var statusOrder = []Status{
	StatusStarted,
	StatusProfileCaptured,
	StatusVerificationComplete,
	StatusSignatureComplete,
	StatusPaymentComplete,
	StatusCompleted,
}

// Rank is the position of s in the forward order, or -1 when unknown.
func (s Status) Rank() int {
	return slices.Index(statusOrder, s)
}

func (s Status) IsValid() bool {
	return s.Rank() >= 0
}

// Statuses returns every status in forward order.
func Statuses() []Status {
	return slices.Clone(statusOrder)
}

// AccountType distinguishes individual subscribers from employer-sponsored ones.
type AccountType string

const (
	AccountTypeCitizen   AccountType = "citizen"
	AccountTypeCorporate AccountType = "corporate"
)

func (t AccountType) IsValid() bool {
	return t == AccountTypeCitizen || t == AccountTypeCorporate
}

// Session is the onboarding aggregate root.
type Session struct {
	ID                 id.SessionID
	ResumeToken        string
	Status             Status
	AccountType        AccountType
	Language           string
	Profile            profile.Profile
	RiskLevel          risk.Level
	RiskReasons        []string
	VerificationMethod string
	SignatureMethod    string
	SignatureComplete  bool
	PaymentMethod      string
	AccountNumber      string
	// PopAgentID attributes an assisted onboarding to a point-of-presence agent.
	PopAgentID  string
	IPAddress   string
	UserAgent   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// NewSession builds a session in the Started state.
func NewSession(sessionID id.SessionID, resumeToken string, accountType AccountType, language string, now time.Time) (*Session, error) {
	if sessionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "session id is required")
	}
	if resumeToken == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "resume token is required")
	}
	if !accountType.IsValid() {
		return nil, dErrors.New(dErrors.CodeValidation, "account type must be citizen or corporate")
	}
	return &Session{
		ID:          sessionID,
		ResumeToken: resumeToken,
		Status:      StatusStarted,
		AccountType: accountType,
		Language:    language,
		Profile:     profile.Profile{},
		RiskReasons: []string{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Clone returns a deep enough copy to mutate without touching the original.
func (s *Session) Clone() *Session {
	c := *s
	c.Profile = s.Profile.Clone()
	c.RiskReasons = slices.Clone(s.RiskReasons)
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Reached reports whether the session is at or past status.
func (s *Session) Reached(status Status) bool {
	return s.Status.Rank() >= status.Rank()
}

// Advance moves the session forward to status. It reports false, leaving the
// session unchanged, when status is not ahead of the current one.
func (s *Session) Advance(status Status, now time.Time) bool {
	if status.Rank() <= s.Status.Rank() {
		return false
	}
	s.Status = status
	s.UpdatedAt = now
	return true
}

// ApplyAssessment records the latest risk output.
func (s *Session) ApplyAssessment(a risk.Assessment, now time.Time) {
	s.RiskLevel = a.Level
	s.RiskReasons = slices.Clone(a.Reasons)
	s.UpdatedAt = now
}

// Complete sets the account number and the terminal state together.
func (s *Session) Complete(accountNumber string, now time.Time) {
	s.AccountNumber = accountNumber
	s.Status = StatusCompleted
	s.CompletedAt = &now
	s.UpdatedAt = now
}

// CheckInvariants verifies the account number is set exactly in the terminal state.
func (s *Session) CheckInvariants() error {
	if (s.AccountNumber != "") != (s.Status == StatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "account number must be set exactly when the session is completed")
	}
	if (s.CompletedAt != nil) != (s.Status == StatusCompleted) {
		return dErrors.New(dErrors.CodeInvariantViolation, "completion time must be set exactly when the session is completed")
	}
	if !s.Status.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "unknown session status")
	}
	return nil
}

// Snapshot is the read model returned by Resume and Status.
type Snapshot struct {
	SessionID          string          `json:"session_id"`
	ResumeToken        string          `json:"resume_token"`
	Status             Status          `json:"status"`
	AccountType        AccountType     `json:"account_type"`
	Language           string          `json:"language"`
	Profile            profile.Profile `json:"profile"`
	ProfileSchema      int             `json:"profile_schema_version"`
	RiskLevel          risk.Level      `json:"risk_level,omitempty"`
	RiskReasons        []string        `json:"risk_reasons"`
	RequiresVCIP       bool            `json:"requires_vcip"`
	RequiresEDD        bool            `json:"requires_edd"`
	VerificationMethod string          `json:"verification_method,omitempty"`
	SignatureMethod    string          `json:"signature_method,omitempty"`
	SignatureComplete  bool            `json:"signature_complete"`
	PaymentMethod      string          `json:"payment_method,omitempty"`
	AccountNumber      string          `json:"account_number,omitempty"`
	PopAgentID         string          `json:"pop_agent_id,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
	CompletedAt        *time.Time      `json:"completed_at,omitempty"`
}

func (s *Session) Snapshot() *Snapshot {
	c := s.Clone()
	return &Snapshot{
		SessionID:          c.ID.String(),
		ResumeToken:        c.ResumeToken,
		Status:             c.Status,
		AccountType:        c.AccountType,
		Language:           c.Language,
		Profile:            c.Profile,
		ProfileSchema:      profile.SchemaVersion,
		RiskLevel:          c.RiskLevel,
		RiskReasons:        c.RiskReasons,
		RequiresVCIP:       risk.RequiresEnhancedVideoVerification(c.RiskLevel),
		RequiresEDD:        risk.RequiresEnhancedDueDiligence(c.RiskLevel),
		VerificationMethod: c.VerificationMethod,
		SignatureMethod:    c.SignatureMethod,
		SignatureComplete:  c.SignatureComplete,
		PaymentMethod:      c.PaymentMethod,
		AccountNumber:      c.AccountNumber,
		PopAgentID:         c.PopAgentID,
		CreatedAt:          c.CreatedAt,
		UpdatedAt:          c.UpdatedAt,
		CompletedAt:        c.CompletedAt,
	}
}
