//go:build integration

package service_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"onboard/internal/account"
	"onboard/internal/audit"
	auditstore "onboard/internal/audit/store"
	"onboard/internal/onboarding/models"
	"onboard/internal/onboarding/service"
	"onboard/internal/onboarding/store"
	"onboard/internal/providers"
	"onboard/internal/risk"
	"onboard/internal/signature"
	id "onboard/pkg/domain"
	"onboard/pkg/requestcontext"
	"onboard/pkg/testutil/containers"
)

// PostgresServiceSuite runs the onboarding flow against real Postgres with the
// advisory-locked session transaction.
type PostgresServiceSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	ctx      context.Context
	audit    *audit.Service
	service  *service.Service
}

func TestPostgresServiceSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresServiceSuite))
}

func (s *PostgresServiceSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
}

func (s *PostgresServiceSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx,
		"audit_freezes", "audit_entries", "consent_artifacts", "payments", "verification_records", "sessions")
	s.Require().NoError(err)

	s.ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9", "integration")
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := s.postgres.DB

	auditSvc, err := audit.New(auditstore.NewPostgres(db), audit.WithLogger(logger))
	s.Require().NoError(err)
	s.audit = auditSvc

	verifications := store.NewPostgresVerificationStore(db)
	generator, err := account.NewGenerator("1100")
	s.Require().NoError(err)

	cfg := service.DefaultConfig()
	cfg.DemoProofs = true
	svc, err := service.New(service.Stores{
		Sessions:      store.NewPostgresSessionStore(db),
		Verifications: verifications,
		Payments:      store.NewPostgresPaymentStore(db),
		Consents:      store.NewPostgresConsentStore(db),
		Signatures:    signature.NewInMemoryStore(time.Minute),
	}, s.audit,
		risk.NewEngine(risk.DefaultConfig(), risk.WithHistory(verifications), risk.WithLogger(logger)),
		generator,
		store.NewPostgresSessionTx(db, 0),
		service.WithLogger(logger),
		service.WithConfig(cfg),
	)
	s.Require().NoError(err)
	s.service = svc
}

func (s *PostgresServiceSuite) start() id.SessionID {
	snapshot, err := s.service.Start(s.ctx, service.StartRequest{AccountType: models.AccountTypeCitizen})
	s.Require().NoError(err)
	sessionID, err := id.ParseSessionID(snapshot.SessionID)
	s.Require().NoError(err)
	return sessionID
}

func (s *PostgresServiceSuite) TestFullLifecycle() {
	sessionID := s.start()

	_, err := s.service.UpdateProfile(s.ctx, sessionID, service.ProfileUpdate{Fields: standardProfile(), Advance: true})
	s.Require().NoError(err)
	_, err = s.service.Verify(s.ctx, sessionID, models.VerificationCKYC, providers.VerificationInput{PAN: registeredPAN})
	s.Require().NoError(err)

	initiation, err := s.service.InitiateSignature(s.ctx, sessionID, models.SignatureDSC)
	s.Require().NoError(err)
	_, err = s.service.CompleteSignature(s.ctx, sessionID, initiation.Reference, initiation.DemoProof)
	s.Require().NoError(err)

	payment, err := s.service.InitiatePayment(s.ctx, sessionID, service.PaymentRequest{Method: models.PaymentCard, Amount: 800})
	s.Require().NoError(err)
	_, err = s.service.ConfirmPayment(s.ctx, sessionID, payment.PaymentID)
	s.Require().NoError(err)

	number, err := s.service.IssueAccountNumber(s.ctx, sessionID)
	s.Require().NoError(err)
	s.True(account.Validate(number))

	again, err := s.service.IssueAccountNumber(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Equal(number, again)

	entries, err := s.audit.Trail(s.ctx, sessionID)
	s.Require().NoError(err)
	s.Len(entries, 8)
	for i, e := range entries {
		s.Equal(int64(i+1), e.Sequence)
	}

	verification, err := s.audit.VerifyChain(s.ctx, sessionID)
	s.Require().NoError(err)
	s.True(verification.Valid)
	s.Equal(8, verification.TotalEntries)

	snapshot, err := s.service.Resume(s.ctx, snapshotToken(s, sessionID))
	s.Require().NoError(err)
	s.Equal(models.StatusCompleted, snapshot.Status)
	s.Equal(number, snapshot.AccountNumber)
}

func (s *PostgresServiceSuite) TestConcurrentProfileWritersKeepChainIntact() {
	sessionID := s.start()

	const writers = 12
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.service.UpdateProfile(s.ctx, sessionID, service.ProfileUpdate{
				Fields: map[string]any{"full_name": fmt.Sprintf("writer-%d", i)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		s.Require().NoError(err)
	}

	verification, err := s.audit.VerifyChain(s.ctx, sessionID)
	s.Require().NoError(err)
	s.True(verification.Valid)
	s.Equal(writers+1, verification.TotalEntries)
}

func (s *PostgresServiceSuite) TestIdentityReuseAcrossSessions() {
	for i := 0; i < 2; i++ {
		sessionID := s.start()
		_, err := s.service.UpdateProfile(s.ctx, sessionID, service.ProfileUpdate{Fields: standardProfile(), Advance: true})
		s.Require().NoError(err)
		outcome, err := s.service.Verify(s.ctx, sessionID, models.VerificationCKYC, providers.VerificationInput{PAN: registeredPAN})
		s.Require().NoError(err)
		if i == 1 {
			s.Equal(risk.LevelHigh, outcome.Assessment.Level)
		}
	}
}

func snapshotToken(s *PostgresServiceSuite, sessionID id.SessionID) string {
	snapshot, err := s.service.Status(s.ctx, sessionID)
	s.Require().NoError(err)
	return snapshot.ResumeToken
}
