package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the resolved runtime configuration.
type Config struct {
	LogLevel   string      `yaml:"log_level"`
	Server     Server      `yaml:"server"`
	Database   Database    `yaml:"database"`
	Redis      RedisConfig `yaml:"redis"`
	Kafka      KafkaConfig `yaml:"kafka"`
	Onboarding Onboarding  `yaml:"onboarding"`
	Risk       Risk        `yaml:"risk"`
	RateLimit  RateLimit   `yaml:"rate_limit"`
	Admin      Admin       `yaml:"admin"`
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Database selects PostgreSQL persistence. An empty URL keeps everything in memory.
type Database struct {
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	Migrate         bool          `yaml:"migrate"`
}

// RedisConfig selects Redis for e-sign references and rate limits.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// KafkaConfig selects the notification broker. No brokers means log-only notifications.
type KafkaConfig struct {
	Brokers           []string      `yaml:"brokers"`
	ClientID          string        `yaml:"client_id"`
	NotificationTopic string        `yaml:"notification_topic"`
	Linger            time.Duration `yaml:"linger"`
	Partitions        int32         `yaml:"partitions"`
	Replication       int16         `yaml:"replication"`
}

// Onboarding tunes the session state machine.
type Onboarding struct {
	AccountPrefix      string        `yaml:"account_prefix"`
	SignatureTTL       time.Duration `yaml:"signature_ttl"`
	CKYCUploadDeadline time.Duration `yaml:"ckyc_upload_deadline"`
	RiskGateEnforced   bool          `yaml:"risk_gate_enforced"`
	DemoProofs         bool          `yaml:"demo_proofs"`
	TxTimeout          time.Duration `yaml:"tx_timeout"`
	RegistryCacheTTL   time.Duration `yaml:"registry_cache_ttl"`
	ManualConfidence   float64       `yaml:"manual_confidence"`
}

// Risk holds the risk engine's policy thresholds.
type Risk struct {
	HighValueThreshold  float64       `yaml:"high_value_threshold"`
	MajorityAge         float64       `yaml:"majority_age"`
	SeniorAge           float64       `yaml:"senior_age"`
	ConfidenceThreshold float64       `yaml:"confidence_threshold"`
	DuplicateWindow     time.Duration `yaml:"duplicate_window"`
}

// RateLimit bounds the expensive subscriber endpoints per client IP.
type RateLimit struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// Admin configures the regulator API.
type Admin struct {
	JWTSigningKey string `yaml:"jwt_signing_key"`
	JWTIssuer     string `yaml:"jwt_issuer"`
}

// Default returns the configuration used when nothing else is supplied.
func Default() Config {
	return Config{
		LogLevel: "info",
		Server: Server{
			Addr:            ":8080",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			RequestTimeout:  30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Database: Database{
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 30 * time.Minute,
			Migrate:         true,
		},
		Redis: RedisConfig{
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: KafkaConfig{
			ClientID:          "onboard",
			NotificationTopic: "onboard.notifications",
			Linger:            10 * time.Millisecond,
			Partitions:        3,
			Replication:       1,
		},
		Onboarding: Onboarding{
			AccountPrefix:      "1100",
			SignatureTTL:       10 * time.Minute,
			CKYCUploadDeadline: 72 * time.Hour,
			DemoProofs:         true,
			TxTimeout:          5 * time.Second,
			RegistryCacheTTL:   5 * time.Minute,
			ManualConfidence:   60,
		},
		Risk: Risk{
			HighValueThreshold:  1_000_000,
			MajorityAge:         18,
			SeniorAge:           65,
			ConfidenceThreshold: 85,
		},
		RateLimit: RateLimit{
			Requests: 5,
			Window:   time.Minute,
		},
		Admin: Admin{
			// Use a default for development - should be overridden in production
			JWTSigningKey: "dev-secret-key-change-in-production",
			JWTIssuer:     "onboard",
		},
	}
}

// Load resolves configuration in priority order: defaults -> file -> env.
// The file is read from CONFIG_FILE when set.
func Load() (Config, error) {
	return LoadFile(os.Getenv("CONFIG_FILE"))
}

// LoadFile is Load with an explicit file path. An empty path skips the file.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Server.Addr, "ONBOARD_ADDR")
	setString(&cfg.Database.URL, "DATABASE_URL")
	setString(&cfg.Redis.URL, "REDIS_URL")
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = splitList(v)
	}
	setString(&cfg.Kafka.NotificationTopic, "KAFKA_NOTIFICATION_TOPIC")
	setString(&cfg.Onboarding.AccountPrefix, "ACCOUNT_PREFIX")
	setString(&cfg.Admin.JWTSigningKey, "ADMIN_JWT_SIGNING_KEY")

	var errs []error
	errs = append(errs,
		setBool(&cfg.Onboarding.RiskGateEnforced, "RISK_GATE_ENFORCED"),
		setBool(&cfg.Onboarding.DemoProofs, "ESIGN_DEMO_PROOFS"),
		setBool(&cfg.Database.Migrate, "DATABASE_MIGRATE"),
		setDuration(&cfg.Risk.DuplicateWindow, "DUPLICATE_WINDOW"),
		setDuration(&cfg.Onboarding.SignatureTTL, "SIGNATURE_TTL"),
		setInt(&cfg.RateLimit.Requests, "RATE_LIMIT_REQUESTS"),
		setDuration(&cfg.RateLimit.Window, "RATE_LIMIT_WINDOW"),
	)
	return errors.Join(errs...)
}

var accountPrefixPattern = regexp.MustCompile(`^\d{4}$`)

// Validate rejects configurations the service cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if !accountPrefixPattern.MatchString(c.Onboarding.AccountPrefix) {
		errs = append(errs, fmt.Errorf("onboarding.account_prefix must be 4 digits, got %q", c.Onboarding.AccountPrefix))
	}
	if c.Onboarding.SignatureTTL <= 0 {
		errs = append(errs, errors.New("onboarding.signature_ttl must be positive"))
	}
	if c.Risk.DuplicateWindow < 0 {
		errs = append(errs, errors.New("risk.duplicate_window must not be negative"))
	}
	if c.Risk.ConfidenceThreshold < 0 || c.Risk.ConfidenceThreshold > 100 {
		errs = append(errs, errors.New("risk.confidence_threshold must be within 0-100"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit requests and window must be positive"))
	}
	if len(c.Admin.JWTSigningKey) < 32 {
		errs = append(errs, errors.New("admin.jwt_signing_key must be at least 32 bytes"))
	}
	return errors.Join(errs...)
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
