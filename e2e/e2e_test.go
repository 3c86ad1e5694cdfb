package e2e

import (
	"context"
	"os"
	"testing"

	"github.com/cucumber/godog"
)

// TestFeatures runs the feature files against the server at E2E_BASE_URL.
// The server must run with ESIGN_DEMO_PROOFS=true and the default rate limit.
func TestFeatures(t *testing.T) {
	if os.Getenv("E2E_BASE_URL") == "" && os.Getenv("E2E_LOCAL") == "" {
		t.Skip("set E2E_BASE_URL (or E2E_LOCAL=1 for localhost:8080) to run feature tests")
	}
	suite := godog.TestSuite{
		ScenarioInitializer: func(ctx *godog.ScenarioContext) {
			tc := NewTestContext()
			RegisterSteps(ctx, tc)
			ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
				return ctx, nil
			})
		},
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"features"},
			Strict:   true,
			TestingT: t,
		},
	}
	if suite.Run() != 0 {
		t.Fatal("feature tests failed")
	}
}
