package handler

import (
	"time"

	"onboard/internal/admin/service"
	"onboard/internal/audit"
)

type auditEntryResponse struct {
	Sequence     int64          `json:"sequence"`
	Action       audit.Action   `json:"action"`
	PayloadHash  string         `json:"payload_hash"`
	ChainHash    string         `json:"chain_hash"`
	PreviousHash string         `json:"previous_hash"`
	Timestamp    time.Time      `json:"timestamp"`
	IPAddress    string         `json:"ip_address,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type auditTrailResponse struct {
	SessionID string               `json:"session_id"`
	Entries   []auditEntryResponse `json:"entries"`
	Total     int                  `json:"total"`
}

func toAuditTrailResponse(trail *service.Trail) auditTrailResponse {
	resp := auditTrailResponse{
		SessionID: trail.SessionID,
		Entries:   make([]auditEntryResponse, 0, len(trail.Entries)),
		Total:     len(trail.Entries),
	}
	for _, e := range trail.Entries {
		resp.Entries = append(resp.Entries, auditEntryResponse{
			Sequence:     e.Sequence,
			Action:       e.Action,
			PayloadHash:  e.PayloadHash,
			ChainHash:    e.ChainHash,
			PreviousHash: e.PreviousHash,
			Timestamp:    e.Timestamp,
			IPAddress:    e.IPAddress,
			UserAgent:    e.UserAgent,
			Metadata:     e.Metadata,
		})
	}
	return resp
}
