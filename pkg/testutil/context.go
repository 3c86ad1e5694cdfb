package testutil

import (
	"context"
	"time"

	id "onboard/pkg/domain"
	"onboard/pkg/requestcontext"
)

// ServiceContext builds the context the HTTP middleware chain would hand a
// service: client origin, a fixed request time and, when non-nil, the session.
func ServiceContext(sessionID id.SessionID, clientIP, userAgent string, now time.Time) context.Context {
	ctx := requestcontext.WithClientMetadata(context.Background(), clientIP, userAgent)
	ctx = requestcontext.WithTime(ctx, now)
	if !sessionID.IsNil() {
		ctx = requestcontext.WithSessionID(ctx, sessionID)
	}
	return ctx
}
