package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"onboard/internal/account"
	adminhandler "onboard/internal/admin/handler"
	adminservice "onboard/internal/admin/service"
	agenthandler "onboard/internal/agent/handler"
	"onboard/internal/audit"
	auditstore "onboard/internal/audit/store"
	jwttoken "onboard/internal/jwt_token"
	"onboard/internal/notify"
	"onboard/internal/onboarding/handler"
	onboardingmetrics "onboard/internal/onboarding/metrics"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/onboarding/store"
	"onboard/internal/platform/config"
	"onboard/internal/platform/httpserver"
	"onboard/internal/platform/kafka"
	"onboard/internal/platform/logger"
	"onboard/internal/platform/metrics"
	"onboard/internal/platform/postgres"
	"onboard/internal/platform/redis"
	"onboard/internal/providers"
	rlmiddleware "onboard/internal/ratelimit/middleware"
	rlmodels "onboard/internal/ratelimit/models"
	rlservice "onboard/internal/ratelimit/service"
	rlstore "onboard/internal/ratelimit/store"
	"onboard/internal/risk"
	"onboard/internal/signature"
	"onboard/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	checks := map[string]httpserver.HealthCheck{}

	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db, log); err != nil {
				return err
			}
		}
		checks["postgres"] = db.PingContext
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks["redis"] = redisClient.Health
	}

	kafkaClient, err := kafka.New(cfg.Kafka)
	if err != nil {
		return err
	}
	if kafkaClient != nil {
		defer kafkaClient.Close()
		if err := kafka.EnsureTopic(ctx, kafkaClient, cfg.Kafka.NotificationTopic, cfg.Kafka.Partitions, cfg.Kafka.Replication); err != nil {
			return err
		}
		checks["kafka"] = kafkaClient.Ping
	}

	httpMetrics := metrics.New()
	b := buildBackends(db, redisClient, cfg.Onboarding)

	chain, err := audit.New(b.audit, audit.WithLogger(log), audit.WithMetrics(audit.NewMetrics()))
	if err != nil {
		return err
	}
	generator, err := account.NewGenerator(cfg.Onboarding.AccountPrefix)
	if err != nil {
		return err
	}
	engine := risk.NewEngine(risk.Config{
		HighValueThreshold:  cfg.Risk.HighValueThreshold,
		MajorityAge:         cfg.Risk.MajorityAge,
		SeniorAge:           cfg.Risk.SeniorAge,
		ConfidenceThreshold: cfg.Risk.ConfidenceThreshold,
		DuplicateWindow:     cfg.Risk.DuplicateWindow,
	}, risk.WithLogger(log), risk.WithHistory(b.verifications))

	var notifier notify.Notifier = notify.NewLogNotifier(log)
	if kafkaClient != nil {
		kn := notify.NewKafkaNotifier(kafkaClient, cfg.Kafka.NotificationTopic, log)
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := kn.Flush(flushCtx); err != nil {
				log.Warn("failed to flush notifications", "error", err)
			}
		}()
		notifier = kn
	}

	registry := providers.NewCachedRegistry(&providers.SimulatedRegistry{}, cfg.Onboarding.RegistryCacheTTL)
	agents := providers.NewSimulatedAgentRegistry()
	gateway := providers.NewBreakerGateway(providers.NewSimulatedGateway(), circuit.New("payment-gateway"), log)

	onboarding, err := service.New(b.stores(), chain, engine, generator, b.tx,
		service.WithLogger(log),
		service.WithMetrics(onboardingmetrics.New()),
		service.WithConfig(service.Config{
			SignatureTTL:       cfg.Onboarding.SignatureTTL,
			CKYCUploadDeadline: cfg.Onboarding.CKYCUploadDeadline,
			RiskGateEnforced:   cfg.Onboarding.RiskGateEnforced,
			DemoProofs:         cfg.Onboarding.DemoProofs,
		}),
		service.WithRegistry(registry),
		service.WithVerifier(models.VerificationCKYC, providers.CKYCProvider{Registry: registry}),
		service.WithVerifier(models.VerificationManual, providers.ManualProvider{DefaultConfidence: cfg.Onboarding.ManualConfidence}),
		service.WithGateway(gateway),
		service.WithNotifier(notifier),
		service.WithAgents(agents),
	)
	if err != nil {
		return err
	}

	limiter, err := buildRateLimiter(redisClient, cfg.RateLimit, log)
	if err != nil {
		return err
	}

	regulator, err := adminservice.New(b.sessions, chain,
		adminservice.WithLogger(log),
		adminservice.WithAgents(agents),
	)
	if err != nil {
		return err
	}
	jwtService := jwttoken.NewJWTService(cfg.Admin.JWTSigningKey, cfg.Admin.JWTIssuer, jwttoken.AdminAudience)

	router := httpserver.NewRouter(checks,
		handler.New(onboarding, log, httpMetrics,
			handler.WithRateLimiter(rlmiddleware.New(limiter, log, rlmiddleware.WithMetrics(httpMetrics))),
			handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		),
		adminhandler.New(regulator, jwtService.Validator(), log, httpMetrics),
		agenthandler.New(onboarding, regulator, jwtService, jwtService.Validator(), log, httpMetrics),
	)

	return httpserver.Run(ctx, httpserver.New(cfg.Server, router), cfg.Server.ShutdownTimeout, log)
}

type sessionStore interface {
	service.SessionStore
	adminservice.SessionReader
}

type verificationStore interface {
	service.VerificationStore
	risk.HistoryLookup
}

type backends struct {
	sessions      sessionStore
	verifications verificationStore
	payments      service.PaymentStore
	consents      service.ConsentStore
	signatures    signature.Store
	audit         audit.Store
	tx            service.SessionTx
}

func (b backends) stores() service.Stores {
	return service.Stores{
		Sessions:      b.sessions,
		Verifications: b.verifications,
		Payments:      b.payments,
		Consents:      b.consents,
		Signatures:    b.signatures,
	}
}

// buildBackends picks PostgreSQL when a database is configured and in-memory
// stores otherwise. Pending e-sign references go to Redis when available.
func buildBackends(db *sql.DB, redisClient *redis.Client, cfg config.Onboarding) backends {
	var b backends
	if db != nil {
		b = backends{
			sessions:      store.NewPostgresSessionStore(db),
			verifications: store.NewPostgresVerificationStore(db),
			payments:      store.NewPostgresPaymentStore(db),
			consents:      store.NewPostgresConsentStore(db),
			audit:         auditstore.NewPostgres(db),
			tx:            store.NewPostgresSessionTx(db, cfg.TxTimeout),
		}
	} else {
		b = backends{
			sessions:      store.NewInMemorySessionStore(),
			verifications: store.NewInMemoryVerificationStore(),
			payments:      store.NewInMemoryPaymentStore(),
			consents:      store.NewInMemoryConsentStore(),
			audit:         auditstore.NewInMemoryStore(),
			tx:            service.NewShardedTx(cfg.TxTimeout),
		}
	}

	if redisClient != nil {
		b.signatures = signature.NewRedisStore(redisClient.Client)
	} else {
		b.signatures = signature.NewInMemoryStore(time.Minute)
	}
	return b
}

// buildRateLimiter counts in Redis when configured, falling back to process
// memory while the Redis breaker is open.
func buildRateLimiter(redisClient *redis.Client, cfg config.RateLimit, log *slog.Logger) (*rlservice.Service, error) {
	limit := rlmodels.Limit{Requests: cfg.Requests, Window: cfg.Window}
	memory := rlstore.NewInMemoryStore()
	if redisClient == nil {
		return rlservice.New(memory, limit, rlservice.WithLogger(log))
	}
	return rlservice.New(rlstore.NewRedisStore(redisClient.Client), limit,
		rlservice.WithLogger(log),
		rlservice.WithFallback(memory, circuit.New("ratelimit-redis")),
	)
}
