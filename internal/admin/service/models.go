package service

import (
	"time"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/providers"
)

// Dashboard is the regulator's aggregate view of the onboarding funnel.
type Dashboard struct {
	TotalSessions            int             `json:"total_sessions"`
	ByStatus                 map[string]int  `json:"by_status"`
	ByVerificationMethod     map[string]int  `json:"by_verification_method"`
	ByRiskLevel              map[string]int  `json:"by_risk_level"`
	Completed                int             `json:"completed"`
	CompletionRate           float64         `json:"completion_rate"`
	AverageCompletionSeconds float64         `json:"average_completion_seconds"`
	FrozenSessions           []FrozenSession `json:"frozen_sessions"`
	GeneratedAt              time.Time       `json:"generated_at"`
}

type FrozenSession struct {
	SessionID string    `json:"session_id"`
	Sequence  int64     `json:"broken_sequence"`
	Reason    string    `json:"reason"`
	FrozenAt  time.Time `json:"frozen_at"`
}

// AgentStats is an agent's attribution record. SuccessRate is a percentage
// with one decimal.
type AgentStats struct {
	Agent          providers.Agent  `json:"agent"`
	TotalSessions  int              `json:"total_sessions"`
	Completed      int              `json:"completed"`
	InProgress     int              `json:"in_progress"`
	SuccessRate    float64          `json:"success_rate"`
	ByStatus       map[string]int   `json:"by_status"`
	RecentSessions []SessionSummary `json:"recent_sessions"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// SessionSummary omits the profile; regulators read details via the audit trail.
type SessionSummary struct {
	SessionID          string        `json:"session_id"`
	Status             models.Status `json:"status"`
	AccountType        string        `json:"account_type"`
	RiskLevel          string        `json:"risk_level,omitempty"`
	RiskReasons        []string      `json:"risk_reasons"`
	VerificationMethod string        `json:"verification_method,omitempty"`
	AccountNumber      string        `json:"account_number,omitempty"`
	PopAgentID         string        `json:"pop_agent_id,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
	CompletedAt        *time.Time    `json:"completed_at,omitempty"`
}

type SessionPage struct {
	Sessions []SessionSummary `json:"sessions"`
	Total    int              `json:"total"`
	Limit    int              `json:"limit"`
	Offset   int              `json:"offset"`
}

type Trail struct {
	SessionID string
	Entries   []*audit.Entry
}

func toSummary(s *models.Session) SessionSummary {
	reasons := s.RiskReasons
	if reasons == nil {
		reasons = []string{}
	}
	return SessionSummary{
		SessionID:          s.ID.String(),
		Status:             s.Status,
		AccountType:        string(s.AccountType),
		RiskLevel:          string(s.RiskLevel),
		RiskReasons:        reasons,
		VerificationMethod: s.VerificationMethod,
		AccountNumber:      s.AccountNumber,
		PopAgentID:         s.PopAgentID,
		CreatedAt:          s.CreatedAt,
		UpdatedAt:          s.UpdatedAt,
		CompletedAt:        s.CompletedAt,
	}
}
