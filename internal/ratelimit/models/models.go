// Package models defines rate limit classes and check results.
package models

import "time"

// EndpointClass groups endpoints that share one budget per client.
type EndpointClass string

const (
	ClassVerification EndpointClass = "kyc_verify"
	ClassPayment      EndpointClass = "payment_initiate"
)

// Limit is a fixed-window budget.
type Limit struct {
	Requests int
	Window   time.Duration
}

// Result is the outcome of one check.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter int
	Degraded   bool
}

// Key scopes a counter to one class and one client.
func Key(class EndpointClass, clientIP string) string {
	return "ratelimit:" + string(class) + ":" + clientIP
}

// NewResult derives the client-visible result from a window counter.
func NewResult(count int, limit Limit, resetAt, now time.Time) *Result {
	remaining := max(limit.Requests-count, 0)
	r := &Result{
		Allowed:   count <= limit.Requests,
		Limit:     limit.Requests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
	if !r.Allowed {
		r.RetryAfter = max(int(resetAt.Sub(now).Seconds()+0.999), 1)
	}
	return r
}
