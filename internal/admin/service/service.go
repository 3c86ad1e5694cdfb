package service

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"onboard/internal/audit"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/store"
	"onboard/internal/providers"
	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/sentinel"
	pstrings "onboard/pkg/platform/strings"
	"onboard/pkg/requestcontext"
)

// dashboardTimeout bounds the parallel aggregate queries behind Dashboard.
const dashboardTimeout = 5 * time.Second

// SessionReader is the read side of the session store.
type SessionReader interface {
	FindByID(ctx context.Context, sessionID id.SessionID) (*models.Session, error)
	List(ctx context.Context, filter store.ListFilter) ([]*models.Session, int, error)
	CountByStatus(ctx context.Context) (map[models.Status]int, error)
	CountByStatusForAgent(ctx context.Context, agentID string) (map[models.Status]int, error)
	CountByVerificationMethod(ctx context.Context) (map[string]int, error)
	CountByRiskLevel(ctx context.Context) (map[string]int, error)
	CompletionStats(ctx context.Context) (store.CompletionStats, error)
}

// AuditReader exposes chain reads and verification.
type AuditReader interface {
	Trail(ctx context.Context, sessionID id.SessionID) ([]*audit.Entry, error)
	VerifyChain(ctx context.Context, sessionID id.SessionID) (*audit.Verification, error)
	Frozen(ctx context.Context) ([]audit.Freeze, error)
}

// AgentDirectory resolves point-of-presence agents.
type AgentDirectory interface {
	Lookup(ctx context.Context, agentID string) (*providers.Agent, error)
}

// Service answers regulator queries.
type Service struct {
	sessions SessionReader
	audit    AuditReader
	agents   AgentDirectory
	logger   *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithAgents replaces the agent directory used by AgentStats.
func WithAgents(agents AgentDirectory) Option {
	return func(s *Service) {
		s.agents = agents
	}
}

func New(sessions SessionReader, auditReader AuditReader, opts ...Option) (*Service, error) {
	if sessions == nil {
		return nil, errors.New("session reader is required")
	}
	if auditReader == nil {
		return nil, errors.New("audit reader is required")
	}
	s := &Service{
		sessions: sessions,
		audit:    auditReader,
		agents:   providers.NewSimulatedAgentRegistry(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dashboard aggregates funnel counts, channel mix, risk mix, completion time
// and frozen chains. Queries run in parallel; the first failure cancels the rest.
func (s *Service) Dashboard(ctx context.Context) (*Dashboard, error) {
	ctx, cancel := context.WithTimeout(ctx, dashboardTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	dashboard := &Dashboard{GeneratedAt: requestcontext.Now(ctx).UTC()}

	g.Go(func() error {
		counts, err := s.sessions.CountByStatus(gctx)
		if err != nil {
			return err
		}
		dashboard.ByStatus = make(map[string]int, len(counts))
		for _, status := range models.Statuses() {
			dashboard.ByStatus[string(status)] = counts[status]
			dashboard.TotalSessions += counts[status]
		}
		return nil
	})
	g.Go(func() error {
		counts, err := s.sessions.CountByVerificationMethod(gctx)
		dashboard.ByVerificationMethod = counts
		return err
	})
	g.Go(func() error {
		counts, err := s.sessions.CountByRiskLevel(gctx)
		dashboard.ByRiskLevel = counts
		return err
	})
	g.Go(func() error {
		stats, err := s.sessions.CompletionStats(gctx)
		dashboard.Completed = stats.Completed
		dashboard.AverageCompletionSeconds = stats.AverageSeconds
		return err
	})
	g.Go(func() error {
		frozen, err := s.audit.Frozen(gctx)
		if err != nil {
			return err
		}
		dashboard.FrozenSessions = make([]FrozenSession, 0, len(frozen))
		for _, f := range frozen {
			dashboard.FrozenSessions = append(dashboard.FrozenSessions, FrozenSession{
				SessionID: f.SessionID.String(),
				Sequence:  f.Sequence,
				Reason:    f.Reason,
				FrozenAt:  f.FrozenAt,
			})
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.ErrorContext(ctx, "dashboard aggregation failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, translate(err, "failed to build dashboard")
	}
	if dashboard.TotalSessions > 0 {
		dashboard.CompletionRate = float64(dashboard.Completed) / float64(dashboard.TotalSessions)
	}
	return dashboard, nil
}

// ListQuery is the unvalidated regulator filter.
type ListQuery struct {
	Statuses []string
	AgentID  string
	Limit    int
	Offset   int
}

// ListSessions pages through sessions newest first.
func (s *Service) ListSessions(ctx context.Context, q ListQuery) (*SessionPage, error) {
	statuses := pstrings.DedupeAndTrimLower(q.Statuses)
	filter := store.ListFilter{
		AgentID: providers.NormalizeAgentID(q.AgentID),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}
	for _, raw := range statuses {
		status := models.Status(raw)
		if !status.IsValid() {
			return nil, dErrors.New(dErrors.CodeValidation, "unknown status: "+raw)
		}
		filter.Statuses = append(filter.Statuses, status)
	}
	filter = filter.Normalize()

	sessions, total, err := s.sessions.List(ctx, filter)
	if err != nil {
		return nil, translate(err, "failed to list sessions")
	}
	page := &SessionPage{
		Sessions: make([]SessionSummary, 0, len(sessions)),
		Total:    total,
		Limit:    filter.Limit,
		Offset:   filter.Offset,
	}
	for _, session := range sessions {
		page.Sessions = append(page.Sessions, toSummary(session))
	}
	return page, nil
}

// recentAgentSessions is how many of an agent's newest sessions AgentStats lists.
const recentAgentSessions = 10

// AgentStats summarises the sessions attributed to one agent. The agent
// lookup, the status counts and the recent sessions are fetched in parallel.
func (s *Service) AgentStats(ctx context.Context, agentID string) (*AgentStats, error) {
	agentID = providers.NormalizeAgentID(agentID)
	if agentID == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "agent_id is required")
	}
	ctx, cancel := context.WithTimeout(ctx, dashboardTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	stats := &AgentStats{GeneratedAt: requestcontext.Now(ctx).UTC()}

	g.Go(func() error {
		agent, err := s.agents.Lookup(gctx, agentID)
		if err != nil {
			if providers.GetCategory(err) == providers.ErrorNotFound {
				return dErrors.New(dErrors.CodeNotFound, "agent not found")
			}
			return dErrors.Wrap(err, dErrors.CodeProviderFailure, "agent registry unavailable")
		}
		stats.Agent = *agent
		return nil
	})
	g.Go(func() error {
		counts, err := s.sessions.CountByStatusForAgent(gctx, agentID)
		if err != nil {
			return err
		}
		stats.ByStatus = make(map[string]int, len(counts))
		for _, status := range models.Statuses() {
			stats.ByStatus[string(status)] = counts[status]
			stats.TotalSessions += counts[status]
		}
		stats.Completed = counts[models.StatusCompleted]
		return nil
	})
	g.Go(func() error {
		recent, _, err := s.sessions.List(gctx, store.ListFilter{AgentID: agentID, Limit: recentAgentSessions})
		if err != nil {
			return err
		}
		stats.RecentSessions = make([]SessionSummary, 0, len(recent))
		for _, session := range recent {
			stats.RecentSessions = append(stats.RecentSessions, toSummary(session))
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.ErrorContext(ctx, "agent stats aggregation failed",
				"agent_id", agentID,
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
		return nil, translate(err, "failed to build agent stats")
	}
	stats.InProgress = stats.TotalSessions - stats.Completed
	if stats.TotalSessions > 0 {
		stats.SuccessRate = math.Round(float64(stats.Completed)/float64(stats.TotalSessions)*1000) / 10
	}
	return stats, nil
}

// AuditTrail returns the chain of an existing session.
func (s *Service) AuditTrail(ctx context.Context, sessionID id.SessionID) (*Trail, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	entries, err := s.audit.Trail(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "audit trail accessed",
		"session_id", sessionID.String(),
		"actor", requestcontext.Actor(ctx),
		"entries", len(entries),
	)
	return &Trail{SessionID: sessionID.String(), Entries: entries}, nil
}

// VerifyChain re-walks a session's chain. A break freezes the session.
func (s *Service) VerifyChain(ctx context.Context, sessionID id.SessionID) (*audit.Verification, error) {
	if err := s.ensureSession(ctx, sessionID); err != nil {
		return nil, err
	}
	result, err := s.audit.VerifyChain(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "audit chain verified on demand",
		"session_id", sessionID.String(),
		"actor", requestcontext.Actor(ctx),
		"valid", result.Valid,
	)
	return result, nil
}

func (s *Service) ensureSession(ctx context.Context, sessionID id.SessionID) error {
	if _, err := s.sessions.FindByID(ctx, sessionID); err != nil {
		return translate(err, "failed to load session")
	}
	return nil
}

func translate(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "session not found")
	case errors.Is(err, context.DeadlineExceeded):
		return dErrors.Wrap(err, dErrors.CodeTimeout, msg)
	}
	if _, ok := dErrors.As(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeStorageFailure, msg)
}
