// Package store persists onboarding sessions and the records they reference.
//
// Every store comes in two flavours: an in-memory one for tests and single-node
// development, and a PostgreSQL one that joins the session transaction carried
// in the context (see pkg/platform/tx).
package store

import "onboard/internal/onboarding/models"

// ListFilter selects sessions for the regulator dashboard.
type ListFilter struct {
	Statuses []models.Status
	// AgentID restricts the listing to sessions attributed to one agent.
	AgentID string
	Limit   int
	Offset  int
}

// DefaultListLimit applies when the caller passes no limit.
const DefaultListLimit = 50

// MaxListLimit caps a single page.
const MaxListLimit = 500

// Normalize clamps paging values into range.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// CompletionStats summarises how long completed sessions took.
type CompletionStats struct {
	Completed      int
	AverageSeconds float64
}
