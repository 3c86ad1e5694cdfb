package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "onboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	cfg, err := LoadFile("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "1100", cfg.Onboarding.AccountPrefix)
	assert.Equal(t, 85.0, cfg.Risk.ConfidenceThreshold)
	assert.Zero(t, cfg.Risk.DuplicateWindow)
	assert.Equal(t, 5, cfg.RateLimit.Requests)
	assert.Empty(t, cfg.Database.URL)
}

func TestLoadFile_FileOverlaysDefaults(t *testing.T) {
	path := writeFile(t, `
server:
  addr: ":9090"
onboarding:
  account_prefix: "2200"
  signature_ttl: 2m
risk:
  duplicate_window: 720h
kafka:
  brokers: ["localhost:9092"]
`)
	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "2200", cfg.Onboarding.AccountPrefix)
	assert.Equal(t, 2*time.Minute, cfg.Onboarding.SignatureTTL)
	assert.Equal(t, 720*time.Hour, cfg.Risk.DuplicateWindow)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	// untouched values keep their defaults
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
}

func TestLoadFile_EnvOverridesFile(t *testing.T) {
	path := writeFile(t, "onboarding:\n  account_prefix: \"2200\"\n")
	t.Setenv("ACCOUNT_PREFIX", "3300")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,")
	t.Setenv("RISK_GATE_ENFORCED", "true")
	t.Setenv("DUPLICATE_WINDOW", "24h")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "3300", cfg.Onboarding.AccountPrefix)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Onboarding.RiskGateEnforced)
	assert.Equal(t, 24*time.Hour, cfg.Risk.DuplicateWindow)
}

func TestLoadFile_Errors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		file string
	}{
		{name: "bad prefix", env: map[string]string{"ACCOUNT_PREFIX": "11A0"}},
		{name: "bad bool", env: map[string]string{"RISK_GATE_ENFORCED": "sometimes"}},
		{name: "bad duration", env: map[string]string{"DUPLICATE_WINDOW": "forever"}},
		{name: "short signing key", env: map[string]string{"ADMIN_JWT_SIGNING_KEY": "short"}},
		{name: "malformed yaml", file: "server: [unterminated"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeFile(t, tt.file)
			}
			_, err := LoadFile(path)
			assert.Error(t, err)
		})
	}
}

func TestLoadFile_MissingFile(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
