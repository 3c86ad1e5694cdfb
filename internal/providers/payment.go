package providers

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"onboard/internal/onboarding/models"
	"onboard/pkg/platform/circuit"
)

// PaymentGateway collects first contributions.
type PaymentGateway interface {
	Initiate(ctx context.Context, method models.PaymentMethod, amount float64) (gatewayRef string, err error)
	Confirm(ctx context.Context, gatewayRef string) (bool, error)
}

// SimulatedGateway settles every payment it initiated. Confirm reports false
// for references it never issued.
type SimulatedGateway struct {
	mu   sync.Mutex
	refs map[string]float64
}

func NewSimulatedGateway() *SimulatedGateway {
	return &SimulatedGateway{refs: make(map[string]float64)}
}

func (g *SimulatedGateway) Initiate(ctx context.Context, method models.PaymentMethod, amount float64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", NewProviderError(ErrorTimeout, "gateway", "initiation cancelled", err)
	}
	if amount <= 0 {
		return "", NewProviderError(ErrorRejected, "gateway", "amount must be positive", nil)
	}
	ref := "PG-" + strings.ToUpper(string(method)) + "-" + strings.ToUpper(uuid.NewString()[:8])
	g.mu.Lock()
	g.refs[ref] = amount
	g.mu.Unlock()
	return ref, nil
}

func (g *SimulatedGateway) Confirm(ctx context.Context, gatewayRef string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, NewProviderError(ErrorTimeout, "gateway", "confirmation cancelled", err)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.refs[gatewayRef]
	return ok, nil
}

// BreakerGateway fails fast while the wrapped gateway keeps failing.
// Rejections are business outcomes and do not trip the breaker.
type BreakerGateway struct {
	next    PaymentGateway
	breaker *circuit.Breaker
	logger  *slog.Logger
}

func NewBreakerGateway(next PaymentGateway, breaker *circuit.Breaker, logger *slog.Logger) *BreakerGateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &BreakerGateway{next: next, breaker: breaker, logger: logger}
}

func (g *BreakerGateway) Initiate(ctx context.Context, method models.PaymentMethod, amount float64) (string, error) {
	if g.breaker.IsOpen() {
		return "", NewProviderError(ErrorProviderOutage, g.breaker.Name(), "payment gateway circuit open", nil)
	}
	ref, err := g.next.Initiate(ctx, method, amount)
	g.record(ctx, err)
	return ref, err
}

func (g *BreakerGateway) Confirm(ctx context.Context, gatewayRef string) (bool, error) {
	if g.breaker.IsOpen() {
		return false, NewProviderError(ErrorProviderOutage, g.breaker.Name(), "payment gateway circuit open", nil)
	}
	ok, err := g.next.Confirm(ctx, gatewayRef)
	g.record(ctx, err)
	return ok, err
}

func (g *BreakerGateway) record(ctx context.Context, err error) {
	if err == nil || GetCategory(err) == ErrorRejected {
		if _, change := g.breaker.RecordSuccess(); change.Closed {
			g.logger.InfoContext(ctx, "payment gateway circuit closed", "breaker", g.breaker.Name())
		}
		return
	}
	if _, change := g.breaker.RecordFailure(); change.Opened {
		g.logger.WarnContext(ctx, "payment gateway circuit opened",
			"breaker", g.breaker.Name(),
			"error", err,
		)
	}
}
