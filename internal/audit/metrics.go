package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the audit chain.
type Metrics struct {
	Appends         *prometheus.CounterVec
	AppendFailures  *prometheus.CounterVec
	Verifications   *prometheus.CounterVec
	IntegrityBreaks prometheus.Counter
}

// NewMetrics registers the audit chain metrics. Call once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Appends: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_audit_appends_total",
			Help: "Audit entries appended by action",
		}, []string{"action"}),
		AppendFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_audit_append_failures_total",
			Help: "Audit appends rejected by reason",
		}, []string{"reason"}), // reason: "frozen", "storage"
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "onboard_audit_verifications_total",
			Help: "Chain verifications by result",
		}, []string{"result"}),
		IntegrityBreaks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "onboard_audit_integrity_breaks_total",
			Help: "Chains found broken and frozen for review",
		}),
	}
}

func (m *Metrics) IncAppend(action Action) {
	if m != nil {
		m.Appends.WithLabelValues(string(action)).Inc()
	}
}

func (m *Metrics) IncAppendFailure(reason string) {
	if m != nil {
		m.AppendFailures.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) IncVerification(valid bool) {
	if m == nil {
		return
	}
	result := "valid"
	if !valid {
		result = "broken"
	}
	m.Verifications.WithLabelValues(result).Inc()
}

func (m *Metrics) IncIntegrityBreak() {
	if m != nil {
		m.IntegrityBreaks.Inc()
	}
}
