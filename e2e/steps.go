package e2e

import (
	"github.com/cucumber/godog"

	"onboard/e2e/steps/common"
	"onboard/e2e/steps/onboarding"
	"onboard/e2e/steps/ratelimit"
	"onboard/e2e/steps/regulator"
)

// RegisterSteps registers all step definitions from modular packages
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Register common steps (background, generic assertions)
	common.RegisterSteps(ctx, tc)

	// Register the subscriber journey
	onboarding.RegisterSteps(ctx, tc)

	// Register per-client rate limit steps
	ratelimit.RegisterSteps(ctx, tc)

	// Register regulator API steps
	regulator.RegisterSteps(ctx, tc)
}
