package regulator

import (
	"context"
	"fmt"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	GET(path string, headers map[string]string) error
	GetResponseField(field string) (any, error)
	GetSessionID() string
	Recall(key string) string
	SetBearer(token string)
	MintToken(subject, role string) (string, error)
}

// RegisterSteps registers regulator API step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &regulatorSteps{tc: tc}

	ctx.Step(`^I am authenticated as a "([^"]*)"$`, steps.authenticateAs)
	ctx.Step(`^I am not authenticated$`, steps.notAuthenticated)
	ctx.Step(`^I open the regulator dashboard$`, steps.openDashboard)
	ctx.Step(`^I list "([^"]*)" sessions$`, steps.listSessions)
	ctx.Step(`^I fetch the audit trail of that session$`, steps.fetchTrail)
	ctx.Step(`^I verify the audit chain of that session$`, steps.verifyChain)
	ctx.Step(`^the audit trail should record (\d+) entries$`, steps.trailShouldRecord)
}

type regulatorSteps struct {
	tc TestContext
}

func (s *regulatorSteps) authenticateAs(ctx context.Context, role string) error {
	token, err := s.tc.MintToken("e2e-"+role, role)
	if err != nil {
		return err
	}
	s.tc.SetBearer(token)
	return nil
}

func (s *regulatorSteps) notAuthenticated(ctx context.Context) error {
	s.tc.SetBearer("")
	return nil
}

func (s *regulatorSteps) openDashboard(ctx context.Context) error {
	return s.tc.GET("/api/admin/dashboard", nil)
}

func (s *regulatorSteps) listSessions(ctx context.Context, status string) error {
	return s.tc.GET("/api/admin/sessions?status="+status+"&limit=10", nil)
}

// sessionID prefers the session set aside by "I forget my session" so the
// regulator call carries no subscriber header.
func (s *regulatorSteps) sessionID() string {
	if id := s.tc.Recall("session_id"); id != "" {
		return id
	}
	return s.tc.GetSessionID()
}

func (s *regulatorSteps) fetchTrail(ctx context.Context) error {
	return s.tc.GET("/api/admin/audit/"+s.sessionID(), nil)
}

func (s *regulatorSteps) verifyChain(ctx context.Context) error {
	return s.tc.GET("/api/admin/audit/"+s.sessionID()+"/verify", nil)
}

func (s *regulatorSteps) trailShouldRecord(ctx context.Context, expected int) error {
	v, err := s.tc.GetResponseField("total")
	if err != nil {
		return err
	}
	if n, ok := v.(float64); !ok || int(n) != expected {
		return fmt.Errorf("expected %d audit entries, got %v", expected, v)
	}
	return nil
}
