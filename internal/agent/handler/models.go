package handler

import (
	"onboard/internal/onboarding/models"
	"onboard/internal/providers"
)

type loginRequest struct {
	AgentID string `json:"agent_id"`
	PIN     string `json:"pin"`
}

type loginResponse struct {
	AccessToken string          `json:"access_token"`
	TokenType   string          `json:"token_type"`
	ExpiresIn   int             `json:"expires_in"`
	Agent       providers.Agent `json:"agent"`
}

type tagResponse struct {
	SessionID  string        `json:"session_id"`
	PopAgentID string        `json:"pop_agent_id"`
	Status     models.Status `json:"status"`
}
