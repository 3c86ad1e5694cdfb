package ratelimit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	GetLastResponseStatus() int
	GetLastResponseBody() []byte
	GetLastResponseHeader(key string) string
	PAN() string
}

// RegisterSteps registers rate-limiting step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &ratelimitSteps{tc: tc}

	ctx.Step(`^I call identity verification (\d+) times$`, steps.callVerifyNTimes)
	ctx.Step(`^I call payment initiation (\d+) times$`, steps.callPaymentNTimes)
	ctx.Step(`^the (\d+)(?:st|nd|rd|th) call should return (\d+)$`, steps.nthCallShouldReturn)
	ctx.Step(`^the remaining budget should be (\d+)$`, steps.remainingShouldBe)
	ctx.Step(`^the response should say when to retry$`, steps.responseShouldSayWhenToRetry)
}

type ratelimitSteps struct {
	tc       TestContext
	statuses []int
}

func (s *ratelimitSteps) callVerifyNTimes(ctx context.Context, n int) error {
	return s.repeat(n, "/api/kyc/verify", map[string]any{"method": "ckyc", "pan": s.tc.PAN()})
}

func (s *ratelimitSteps) callPaymentNTimes(ctx context.Context, n int) error {
	return s.repeat(n, "/api/payment/initiate", map[string]any{"method": "card", "amount": 1000})
}

func (s *ratelimitSteps) repeat(n int, path string, body any) error {
	s.statuses = s.statuses[:0]
	for i := 0; i < n; i++ {
		if err := s.tc.POST(path, body); err != nil {
			return err
		}
		s.statuses = append(s.statuses, s.tc.GetLastResponseStatus())
	}
	return nil
}

func (s *ratelimitSteps) nthCallShouldReturn(ctx context.Context, n, expected int) error {
	if n < 1 || n > len(s.statuses) {
		return fmt.Errorf("only %d calls were made", len(s.statuses))
	}
	if got := s.statuses[n-1]; got != expected {
		return fmt.Errorf("call %d: expected %d, got %d", n, expected, got)
	}
	return nil
}

func (s *ratelimitSteps) remainingShouldBe(ctx context.Context, expected int) error {
	got, err := strconv.Atoi(s.tc.GetLastResponseHeader("X-RateLimit-Remaining"))
	if err != nil {
		return fmt.Errorf("missing X-RateLimit-Remaining header")
	}
	if got != expected {
		return fmt.Errorf("expected %d remaining, got %d", expected, got)
	}
	return nil
}

func (s *ratelimitSteps) responseShouldSayWhenToRetry(ctx context.Context) error {
	retry, err := strconv.Atoi(s.tc.GetLastResponseHeader("Retry-After"))
	if err != nil || retry <= 0 {
		return fmt.Errorf("expected a positive Retry-After header, body: %s", s.tc.GetLastResponseBody())
	}
	return nil
}
