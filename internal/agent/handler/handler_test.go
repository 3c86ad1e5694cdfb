package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	adminsvc "onboard/internal/admin/service"
	"onboard/internal/agent/handler/mocks"
	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/onboarding/models"
	"onboard/internal/providers"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/middleware/admin"
)

//go:generate mockgen -source=handler.go -destination=mocks/agent-mocks.go -package=mocks
type AgentHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	stats   *mocks.MockStatsSource
	jwt     *jwttoken.JWTService
	router  chi.Router
	token   string
}

func TestAgentHandlerSuite(t *testing.T) {
	suite.Run(t, new(AgentHandlerSuite))
}

func (s *AgentHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.stats = mocks.NewMockStatsSource(ctrl)
	s.jwt = jwttoken.NewJWTService("0123456789abcdef0123456789abcdef", "onboard", jwttoken.AdminAudience)

	token, err := s.jwt.GenerateAccessToken("SBI-2024-001", admin.RoleAgent, time.Hour)
	s.Require().NoError(err)
	s.token = token

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.router = chi.NewRouter()
	New(s.service, s.stats, s.jwt, s.jwt.Validator(), logger, nil, WithTokenTTL(2*time.Hour)).Register(s.router)
}

func (s *AgentHandlerSuite) do(method, path, body, token string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *AgentHandlerSuite) body(w *httptest.ResponseRecorder) map[string]any {
	var out map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *AgentHandlerSuite) TestLogin() {
	s.service.EXPECT().AuthenticateAgent(gomock.Any(), "sbi-2024-001", "1234").
		Return(&providers.Agent{ID: "SBI-2024-001", Name: "Rajesh Kumar", Organization: "State Bank of India"}, nil)

	w := s.do(http.MethodPost, "/api/pop/login", `{"agent_id":"sbi-2024-001","pin":"1234"}`, "")

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.body(w)
	s.Equal("Bearer", body["token_type"])
	s.Equal(float64(7200), body["expires_in"])
	s.Equal("SBI-2024-001", body["agent"].(map[string]any)["agent_id"])

	claims, err := s.jwt.ValidateToken(body["access_token"].(string))
	s.Require().NoError(err)
	s.Equal("SBI-2024-001", claims.Subject)
	s.Equal(admin.RoleAgent, claims.Role)
}

func (s *AgentHandlerSuite) TestLoginRejected() {
	s.service.EXPECT().AuthenticateAgent(gomock.Any(), "SBI-2024-001", "0000").
		Return(nil, dErrors.New(dErrors.CodeUnauthorized, "agent id or pin is invalid"))

	w := s.do(http.MethodPost, "/api/pop/login", `{"agent_id":"SBI-2024-001","pin":"0000"}`, "")

	s.Equal(http.StatusUnauthorized, w.Code)
	s.Equal("unauthorized", s.body(w)["error"])
	s.NotContains(w.Body.String(), "access_token")
}

func (s *AgentHandlerSuite) TestTagSession() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().TagAgent(gomock.Any(), sessionID, "SBI-2024-001").Return(&models.Snapshot{
		SessionID:  sessionID.String(),
		PopAgentID: "SBI-2024-001",
		Status:     models.StatusProfileCaptured,
	}, nil)

	w := s.do(http.MethodPost, "/api/pop/sessions/"+sessionID.String()+"/tag", "", s.token)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.body(w)
	s.Equal("SBI-2024-001", body["pop_agent_id"])
	s.Equal("profile_captured", body["status"])
}

func (s *AgentHandlerSuite) TestTagSessionConflict() {
	sessionID := id.NewSessionID()
	s.service.EXPECT().TagAgent(gomock.Any(), sessionID, "SBI-2024-001").
		Return(nil, dErrors.New(dErrors.CodeConflict, "session is already attributed to another agent"))

	w := s.do(http.MethodPost, "/api/pop/sessions/"+sessionID.String()+"/tag", "", s.token)
	s.Equal(http.StatusConflict, w.Code)
}

func (s *AgentHandlerSuite) TestDashboard() {
	s.stats.EXPECT().AgentStats(gomock.Any(), "SBI-2024-001").Return(&adminsvc.AgentStats{
		Agent:          providers.Agent{ID: "SBI-2024-001"},
		TotalSessions:  2,
		Completed:      1,
		InProgress:     1,
		SuccessRate:    50,
		RecentSessions: []adminsvc.SessionSummary{},
	}, nil)

	w := s.do(http.MethodGet, "/api/pop/dashboard", "", s.token)

	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	body := s.body(w)
	s.Equal(float64(2), body["total_sessions"])
	s.Equal(float64(50), body["success_rate"])
}

func (s *AgentHandlerSuite) TestRoutesRequireAgentToken() {
	sessionID := id.NewSessionID()

	w := s.do(http.MethodGet, "/api/pop/dashboard", "", "")
	s.Equal(http.StatusUnauthorized, w.Code)

	regulator, err := s.jwt.GenerateAccessToken("pfrda-officer-7", admin.RoleRegulator, time.Hour)
	s.Require().NoError(err)
	w = s.do(http.MethodPost, "/api/pop/sessions/"+sessionID.String()+"/tag", "", regulator)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, "/api/pop/sessions/not-a-uuid/tag", "", s.token)
	s.Equal(http.StatusBadRequest, w.Code)
}
