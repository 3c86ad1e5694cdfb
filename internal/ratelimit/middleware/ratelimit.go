// Package middleware applies per-client rate limits to subscriber routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"onboard/internal/platform/metrics"
	"onboard/internal/ratelimit/models"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

type RateLimiter interface {
	Check(ctx context.Context, class models.EndpointClass, clientIP string) (*models.Result, error)
}

// Middleware guards the expensive subscriber endpoints, one budget per
// endpoint class and client IP.
type Middleware struct {
	limiter RateLimiter
	logger  *slog.Logger
	metrics *metrics.Metrics
	enabled bool
}

type Option func(*Middleware)

// WithDisabled turns every guard into a pass-through. Local demos use it.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) { m.enabled = !disabled }
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = metrics }
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{limiter: limiter, logger: logger, enabled: true}
	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		logger.Warn("rate limiting disabled")
	}
	return m
}

// RateLimit spends one unit of the class budget per request. A limiter that
// cannot answer lets the request through.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !m.enabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			result, err := m.limiter.Check(ctx, class, requestcontext.ClientIP(ctx))
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed, allowing request",
					"class", string(class),
					"request_id", requestcontext.RequestID(ctx),
					"error", err,
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
			if result.Degraded {
				h.Set("X-RateLimit-Status", "degraded")
			}
			if result.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			m.metrics.IncRateLimited(string(class))
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"class", string(class),
				"retry_after", result.RetryAfter,
				"request_id", requestcontext.RequestID(ctx),
			)
			h.Set("Retry-After", strconv.Itoa(result.RetryAfter))
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests from this address, retry later"))
		})
	}
}
