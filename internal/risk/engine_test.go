package risk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/profile"
	"onboard/pkg/requestcontext"
)

type stubHistory struct {
	count int
	err   error
	since time.Time
	calls int
}

func (s *stubHistory) CountByTaxID(_ context.Context, _ string, since time.Time) (int, error) {
	s.calls++
	s.since = since
	return s.count, s.err
}

func newEngine(opts ...Option) *Engine {
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	return NewEngine(DefaultConfig(), opts...)
}

func ptr(f float64) *float64 { return &f }

// TestEvaluate_Rules covers each rule in isolation.
//
// Justification: the rule table is pure domain logic consulted on every
// profile mutation; each trigger must map to its level and reason.
func TestEvaluate_Rules(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()

	tests := []struct {
		name    string
		in      Input
		level   Level
		reasons []string
	}{
		{"empty profile", Input{Profile: profile.Profile{}}, LevelStandard, []string{}},
		{"pep declared", Input{Profile: profile.Profile{"pep": true}}, LevelHigh, []string{ReasonPEP}},
		{"pep as yes", Input{Profile: profile.Profile{"pep": "yes"}}, LevelHigh, []string{ReasonPEP}},
		{"pep declined", Input{Profile: profile.Profile{"pep": "no"}}, LevelStandard, []string{}},
		{"foreign tax resident", Input{Profile: profile.Profile{"tax_resident": "yes"}}, LevelHigh, []string{ReasonForeignTax}},
		{"manual channel", Input{Profile: profile.Profile{}, VerificationMethod: "manual"}, LevelMedium, []string{ReasonManualUpload}},
		{"manual channel from profile", Input{Profile: profile.Profile{"verification_method": "manual"}}, LevelMedium, []string{ReasonManualUpload}},
		{"high value", Input{Profile: profile.Profile{"contribution_amount": 1_000_001}}, LevelMedium, []string{ReasonHighValue}},
		{"threshold itself is not high value", Input{Profile: profile.Profile{"contribution_amount": 1_000_000}}, LevelStandard, []string{}},
		{"minor", Input{Profile: profile.Profile{"age": 17}}, LevelHigh, []string{ReasonMinor}},
		{"adult", Input{Profile: profile.Profile{"age": 18}}, LevelStandard, []string{}},
		{"senior", Input{Profile: profile.Profile{"age": 66}}, LevelMedium, []string{ReasonSenior}},
		{"low confidence from profile", Input{Profile: profile.Profile{"ai_confidence": 70}}, LevelMedium, []string{ReasonLowConfidence}},
		{"explicit confidence overrides profile", Input{Profile: profile.Profile{"ai_confidence": 70}, Confidence: ptr(95)}, LevelStandard, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Evaluate(ctx, tt.in)
			assert.Equal(t, tt.level, got.Level)
			assert.Equal(t, tt.reasons, got.Reasons)
		})
	}
}

func TestEvaluate_Monotonic(t *testing.T) {
	ctx := context.Background()
	engine := newEngine()

	pepOnly := engine.Evaluate(ctx, Input{Profile: profile.Profile{"pep": true}})
	require.Equal(t, LevelHigh, pepOnly.Level)

	withMinor := engine.Evaluate(ctx, Input{Profile: profile.Profile{"pep": true, "age": 10}})
	assert.Equal(t, LevelHigh, withMinor.Level)
	assert.Equal(t, []string{ReasonPEP, ReasonMinor}, withMinor.Reasons)

	t.Run("manual channel does not downgrade high", func(t *testing.T) {
		got := engine.Evaluate(ctx, Input{Profile: profile.Profile{"pep": true}, VerificationMethod: "manual"})
		assert.Equal(t, LevelHigh, got.Level)
		assert.Equal(t, []string{ReasonPEP, ReasonManualUpload}, got.Reasons)
	})

	t.Run("manual and low confidence both reported at medium", func(t *testing.T) {
		got := engine.Evaluate(ctx, Input{Profile: profile.Profile{"age": 30}, VerificationMethod: "manual", Confidence: ptr(60)})
		assert.Equal(t, LevelMedium, got.Level)
		assert.Equal(t, []string{ReasonManualUpload, ReasonLowConfidence}, got.Reasons)
	})
}

func TestEvaluate_MalformedValuesIgnored(t *testing.T) {
	got := newEngine().Evaluate(context.Background(), Input{Profile: profile.Profile{
		"pep":                 "perhaps",
		"age":                 "thirty",
		"contribution_amount": true,
		"ai_confidence":       "n/a",
		"favourite_colour":    "blue",
	}})
	assert.Equal(t, LevelStandard, got.Level)
	assert.Empty(t, got.Reasons)
}

func TestEvaluate_IdentityReuse(t *testing.T) {
	ctx := context.Background()

	t.Run("single prior record is not an anomaly", func(t *testing.T) {
		history := &stubHistory{count: 1}
		got := newEngine(WithHistory(history)).Evaluate(ctx, Input{Profile: profile.Profile{"pan": "ABCDE1234F"}})
		assert.Equal(t, LevelStandard, got.Level)
		assert.Equal(t, 1, history.calls)
	})

	t.Run("reuse escalates to high and names the count", func(t *testing.T) {
		history := &stubHistory{count: 2}
		got := newEngine(WithHistory(history)).Evaluate(ctx, Input{Profile: profile.Profile{"pan": "ABCDE1234F"}, PendingRecords: 1})
		assert.Equal(t, LevelHigh, got.Level)
		assert.Equal(t, []string{"Identity Anomaly: PAN linked to 3 verification records"}, got.Reasons)
	})

	t.Run("lookup failure skips the rule", func(t *testing.T) {
		history := &stubHistory{count: 5, err: errors.New("db down")}
		got := newEngine(WithHistory(history)).Evaluate(ctx, Input{Profile: profile.Profile{"pan": "ABCDE1234F"}})
		assert.Equal(t, LevelStandard, got.Level)
	})

	t.Run("no tax id means no lookup", func(t *testing.T) {
		history := &stubHistory{count: 5}
		newEngine(WithHistory(history)).Evaluate(ctx, Input{Profile: profile.Profile{}})
		assert.Zero(t, history.calls)
	})

	t.Run("window bounds the lookup", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		history := &stubHistory{}
		cfg := DefaultConfig()
		cfg.DuplicateWindow = 24 * time.Hour
		engine := NewEngine(cfg, WithHistory(history))

		engine.Evaluate(requestcontext.WithTime(ctx, now), Input{Profile: profile.Profile{"pan": "ABCDE1234F"}})
		assert.Equal(t, now.Add(-24*time.Hour), history.since)
	})
}

func TestRequirements(t *testing.T) {
	assert.False(t, RequiresEnhancedVideoVerification(LevelStandard))
	assert.True(t, RequiresEnhancedVideoVerification(LevelMedium))
	assert.True(t, RequiresEnhancedVideoVerification(LevelHigh))
	assert.False(t, RequiresEnhancedDueDiligence(LevelMedium))
	assert.True(t, RequiresEnhancedDueDiligence(LevelHigh))
}
