// Package requestcontext carries request-scoped values between the HTTP
// middleware and the services, so services never import net/http.
//
// Service tests inject the same values directly:
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
//	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.7", "Mozilla/5.0")
package requestcontext

import (
	"context"
	"time"

	id "onboard/pkg/domain"
)

type key int

const (
	keySessionID key = iota
	keyActor
	keyClientIP
	keyUserAgent
	keyRequestID
	keyRequestTime
)

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// SessionID is the onboarding session bound to the request, or the zero id.
func SessionID(ctx context.Context) id.SessionID {
	sessionID, _ := value[id.SessionID](ctx, keySessionID)
	return sessionID
}

func WithSessionID(ctx context.Context, sessionID id.SessionID) context.Context {
	return context.WithValue(ctx, keySessionID, sessionID)
}

// Actor is the authenticated regulator subject. Subscriber requests have none.
func Actor(ctx context.Context) string {
	actor, _ := value[string](ctx, keyActor)
	return actor
}

func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, keyActor, actor)
}

func ClientIP(ctx context.Context) string {
	ip, _ := value[string](ctx, keyClientIP)
	return ip
}

func UserAgent(ctx context.Context) string {
	ua, _ := value[string](ctx, keyUserAgent)
	return ua
}

// WithClientMetadata records where the request came from. Both values end up
// in audit entries.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, keyClientIP, clientIP)
	return context.WithValue(ctx, keyUserAgent, userAgent)
}

func RequestID(ctx context.Context) string {
	requestID, _ := value[string](ctx, keyRequestID)
	return requestID
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// Now is the instant the request was received. Outside a request (workers,
// notifier callbacks) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := RequestTime(ctx); ok {
		return t
	}
	return time.Now()
}

// RequestTime reports the pinned request time, if one was set.
func RequestTime(ctx context.Context) (time.Time, bool) {
	return value[time.Time](ctx, keyRequestTime)
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, keyRequestTime, t)
}
