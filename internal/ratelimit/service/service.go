// Package service checks per-client budgets against a primary counter store,
// switching to an in-process fallback while the primary is failing.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"onboard/internal/ratelimit/models"
	"onboard/pkg/platform/circuit"
)

// CounterStore increments the fixed-window counter for key.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, resetAt time.Time, err error)
}

// Service applies one Limit per endpoint class.
type Service struct {
	primary  CounterStore
	fallback CounterStore
	breaker  *circuit.Breaker
	limits   map[models.EndpointClass]models.Limit
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithFallback sets the store used while the breaker is open.
func WithFallback(fallback CounterStore, breaker *circuit.Breaker) Option {
	return func(s *Service) {
		s.fallback = fallback
		s.breaker = breaker
	}
}

// WithLimit overrides the budget for one class.
func WithLimit(class models.EndpointClass, limit models.Limit) Option {
	return func(s *Service) {
		s.limits[class] = limit
	}
}

func New(primary CounterStore, defaultLimit models.Limit, opts ...Option) (*Service, error) {
	if primary == nil {
		return nil, errors.New("counter store is required")
	}
	if defaultLimit.Requests <= 0 || defaultLimit.Window <= 0 {
		return nil, errors.New("limit requests and window must be positive")
	}
	s := &Service{
		primary: primary,
		limits: map[models.EndpointClass]models.Limit{
			models.ClassVerification: defaultLimit,
			models.ClassPayment:      defaultLimit,
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// Check counts one request from clientIP against class.
func (s *Service) Check(ctx context.Context, class models.EndpointClass, clientIP string) (*models.Result, error) {
	limit, ok := s.limits[class]
	if !ok {
		return &models.Result{Allowed: true}, nil
	}
	key := models.Key(class, clientIP)

	if s.breaker != nil && s.breaker.IsOpen() {
		result, err := s.checkFallback(ctx, key, limit)
		// try the primary so the breaker can close again
		if _, _, perr := s.primary.Increment(ctx, key, limit.Window); perr == nil {
			if _, change := s.breaker.RecordSuccess(); change.Closed {
				s.logger.InfoContext(ctx, "rate limit store recovered", "breaker", s.breaker.Name())
			}
		} else {
			s.breaker.RecordFailure()
		}
		return result, err
	}

	count, resetAt, err := s.primary.Increment(ctx, key, limit.Window)
	if err != nil {
		if s.breaker == nil {
			return nil, err
		}
		useFallback, change := s.breaker.RecordFailure()
		if change.Opened {
			s.logger.WarnContext(ctx, "rate limit store failing, using in-memory fallback",
				"breaker", s.breaker.Name(),
				"error", err,
			)
		}
		if !useFallback {
			return nil, err
		}
		return s.checkFallback(ctx, key, limit)
	}
	if s.breaker != nil {
		s.breaker.RecordSuccess()
	}
	return models.NewResult(count, limit, resetAt, time.Now()), nil
}

func (s *Service) checkFallback(ctx context.Context, key string, limit models.Limit) (*models.Result, error) {
	count, resetAt, err := s.fallback.Increment(ctx, key, limit.Window)
	if err != nil {
		return nil, err
	}
	result := models.NewResult(count, limit, resetAt, time.Now())
	result.Degraded = true
	return result, nil
}
