// Package origin captures where a state-changing request came from so it can be
// stamped onto audit entries.
package origin

import (
	"context"

	"github.com/mssola/useragent"

	"onboard/pkg/requestcontext"
)

// Origin is the request-origin metadata recorded with every audit entry.
type Origin struct {
	IPAddress string
	UserAgent string
	RequestID string
}

// FromContext reads origin metadata populated by the HTTP middleware.
func FromContext(ctx context.Context) Origin {
	return Origin{
		IPAddress: requestcontext.ClientIP(ctx),
		UserAgent: requestcontext.UserAgent(ctx),
		RequestID: requestcontext.RequestID(ctx),
	}
}

// Client summarises the user agent. Returns nil when no user agent was sent.
func (o Origin) Client() map[string]any {
	if o.UserAgent == "" {
		return nil
	}
	ua := useragent.New(o.UserAgent)
	browser, version := ua.Browser()
	return map[string]any{
		"browser":         browser,
		"browser_version": version,
		"os":              ua.OS(),
		"mobile":          ua.Mobile(),
		"bot":             ua.Bot(),
	}
}
