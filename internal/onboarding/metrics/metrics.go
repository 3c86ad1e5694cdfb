package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the onboarding state machine.
// Tracks session starts, status transitions, risk outcomes and operation latency.
type Metrics struct {
	SessionsStarted   prometheus.Counter
	Transitions       *prometheus.CounterVec
	RiskAssessments   *prometheus.CounterVec
	ProviderFailures  *prometheus.CounterVec
	AccountsIssued    prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New creates a new Metrics instance with all onboarding metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_sessions_started_total",
			Help: "Total number of onboarding sessions started",
		}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_session_transitions_total",
			Help: "Session status transitions by target status",
		}, []string{"status"}),
		RiskAssessments: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_risk_assessments_total",
			Help: "Risk assessments by resulting level",
		}, []string{"level"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_provider_failures_total",
			Help: "External collaborator failures by provider",
		}, []string{"provider"}),
		AccountsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_accounts_issued_total",
			Help: "Total number of account numbers issued",
		}),
		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "onboard_operation_duration_seconds",
			Help:    "Duration of state machine operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
}

func (m *Metrics) IncTransition(status string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) IncRiskAssessment(level string) {
	if m == nil {
		return
	}
	m.RiskAssessments.WithLabelValues(level).Inc()
}

func (m *Metrics) IncProviderFailure(provider string) {
	if m == nil {
		return
	}
	m.ProviderFailures.WithLabelValues(provider).Inc()
}

func (m *Metrics) IncAccountIssued() {
	if m == nil {
		return
	}
	m.AccountsIssued.Inc()
}

// ObserveOperation records the duration of an operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
