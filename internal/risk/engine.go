// Package risk classifies a subscriber into Standard, Medium or High risk.
//
// Evaluation folds declared attributes, the verification channel and the
// reuse history of the subscriber's tax identifier into a single level. It
// never fails: malformed inputs are skipped and a broken history lookup is
// logged and ignored.
package risk

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"onboard/internal/profile"
	"onboard/pkg/requestcontext"
)

// Level is a three-tier risk classification.
type Level string

const (
	LevelStandard Level = "Standard"
	LevelMedium   Level = "Medium"
	LevelHigh     Level = "High"
)

func (l Level) rank() int {
	switch l {
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// Valid reports whether l is one of the three known levels.
func (l Level) Valid() bool {
	return l == LevelStandard || l == LevelMedium || l == LevelHigh
}

// Reasons attached to triggered rules.
const (
	ReasonPEP             = "PEP Detected"
	ReasonForeignTax      = "Foreign Tax Resident"
	ReasonManualUpload    = "Manual Document Upload"
	ReasonHighValue       = "High-Value Transaction"
	ReasonMinor           = "Minor: Guardian Required"
	ReasonSenior          = "Senior Citizen: Special Review"
	ReasonLowConfidence   = "Low AI Confidence Score"
	reasonIdentityPattern = "Identity Anomaly: PAN linked to %d verification records"
)

// MethodManual is the lowest-assurance verification channel.
const MethodManual = "manual"

// Assessment is the outcome of one evaluation.
type Assessment struct {
	Level   Level
	Reasons []string
}

// RequiresEnhancedVideoVerification is true for Medium and High.
func RequiresEnhancedVideoVerification(level Level) bool {
	return level.rank() >= LevelMedium.rank()
}

// RequiresEnhancedDueDiligence is true only for High.
func RequiresEnhancedDueDiligence(level Level) bool {
	return level == LevelHigh
}

// HistoryLookup counts persisted verification records carrying a tax id.
// since is zero when the lookup is unbounded.
type HistoryLookup interface {
	CountByTaxID(ctx context.Context, taxID string, since time.Time) (int, error)
}

// Config holds the rule thresholds.
type Config struct {
	HighValueThreshold  float64
	MajorityAge         float64
	SeniorAge           float64
	ConfidenceThreshold float64
	// DuplicateWindow bounds the identity-reuse lookup. Zero means unbounded.
	DuplicateWindow time.Duration
}

// DefaultConfig returns the regulatory defaults.
func DefaultConfig() Config {
	return Config{
		HighValueThreshold:  1_000_000,
		MajorityAge:         18,
		SeniorAge:           65,
		ConfidenceThreshold: 85,
	}
}

// Input is everything one evaluation reads.
type Input struct {
	Profile            profile.Profile
	VerificationMethod string
	// Confidence overrides the profile's ai_confidence when set.
	Confidence *float64
	// PendingRecords counts verification records for the profile's tax id
	// created by the current action but not yet visible to the lookup.
	PendingRecords int
}

// Engine applies the ordered risk rules.
type Engine struct {
	cfg     Config
	history HistoryLookup
	logger  *slog.Logger
}

type Option func(*Engine)

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithHistory enables the identity-reuse rule.
func WithHistory(history HistoryLookup) Option {
	return func(e *Engine) {
		e.history = history
	}
}

// NewEngine builds an Engine. Zero thresholds fall back to DefaultConfig.
func NewEngine(cfg Config, opts ...Option) *Engine {
	def := DefaultConfig()
	if cfg.HighValueThreshold <= 0 {
		cfg.HighValueThreshold = def.HighValueThreshold
	}
	if cfg.MajorityAge <= 0 {
		cfg.MajorityAge = def.MajorityAge
	}
	if cfg.SeniorAge <= 0 {
		cfg.SeniorAge = def.SeniorAge
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = def.ConfidenceThreshold
	}
	e := &Engine{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// assessor accumulates triggered rules; the highest severity wins.
type assessor struct {
	level   Level
	reasons []string
}

func (a *assessor) raise(level Level, reason string) {
	if level.rank() > a.level.rank() {
		a.level = level
	}
	a.reasons = append(a.reasons, reason)
}

// Evaluate applies the rules in order and returns the combined assessment.
func (e *Engine) Evaluate(ctx context.Context, in Input) Assessment {
	a := &assessor{level: LevelStandard, reasons: []string{}}
	p := in.Profile

	// Rule 1: politically exposed person
	if pep, ok := p.Flag(profile.KeyPEP); ok && pep {
		a.raise(LevelHigh, ReasonPEP)
	}

	// Rule 2: foreign tax residency
	if foreign, ok := p.Flag(profile.KeyTaxResident); ok && foreign {
		a.raise(LevelHigh, ReasonForeignTax)
	}

	// Rule 3: manual upload channel
	method := in.VerificationMethod
	if method == "" {
		method, _ = p.String(profile.KeyVerificationMethod)
	}
	if method == MethodManual {
		a.raise(LevelMedium, ReasonManualUpload)
	}

	// Rule 4: high-value contribution
	if amount, ok := p.Number(profile.KeyContribution); ok && amount > e.cfg.HighValueThreshold {
		a.raise(LevelMedium, ReasonHighValue)
	}

	// Rule 5: age bands
	if age, ok := p.Number(profile.KeyAge); ok && age >= 0 {
		switch {
		case age < e.cfg.MajorityAge:
			a.raise(LevelHigh, ReasonMinor)
		case age > e.cfg.SeniorAge:
			a.raise(LevelMedium, ReasonSenior)
		}
	}

	// Rule 6: extraction confidence
	confidence, hasConfidence := p.Number(profile.KeyConfidence)
	if in.Confidence != nil {
		confidence, hasConfidence = *in.Confidence, true
	}
	if hasConfidence && confidence < e.cfg.ConfidenceThreshold {
		a.raise(LevelMedium, ReasonLowConfidence)
	}

	// Rule 7: tax id reused across verification records
	if count := e.identityReuse(ctx, p, in.PendingRecords); count > 1 {
		a.raise(LevelHigh, fmt.Sprintf(reasonIdentityPattern, count))
	}

	return Assessment{Level: a.level, Reasons: a.reasons}
}

func (e *Engine) identityReuse(ctx context.Context, p profile.Profile, pending int) int {
	pan, ok := p.String(profile.KeyPAN)
	if !ok || e.history == nil {
		return 0
	}
	var since time.Time
	if e.cfg.DuplicateWindow > 0 {
		since = requestcontext.Now(ctx).Add(-e.cfg.DuplicateWindow)
	}
	count, err := e.history.CountByTaxID(ctx, pan, since)
	if err != nil {
		e.logger.WarnContext(ctx, "identity reuse lookup failed; rule skipped",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return 0
	}
	return count + pending
}
