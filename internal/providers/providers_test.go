package providers

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"onboard/internal/onboarding/models"
	"onboard/pkg/platform/circuit"
)

func TestSimulatedRegistry_Lookup(t *testing.T) {
	r := &SimulatedRegistry{}

	t.Run("individual pan is registered", func(t *testing.T) {
		record, err := r.Lookup(context.Background(), " abcpe1234f ")
		require.NoError(t, err)
		assert.True(t, record.Found)
		assert.Equal(t, "ABCPE1234F", record.PAN)
		assert.Len(t, record.CKYCNumber, 14)

		again, err := r.Lookup(context.Background(), "ABCPE1234F")
		require.NoError(t, err)
		assert.Equal(t, record.CKYCNumber, again.CKYCNumber)
	})

	t.Run("non-individual pan is not found", func(t *testing.T) {
		_, err := r.Lookup(context.Background(), "ABCCE1234F")
		require.Error(t, err)
		assert.Equal(t, ErrorNotFound, GetCategory(err))
	})

	t.Run("malformed pan", func(t *testing.T) {
		_, err := r.Lookup(context.Background(), "12345")
		assert.Equal(t, ErrorBadData, GetCategory(err))
	})

	t.Run("cancelled while waiting", func(t *testing.T) {
		slow := &SimulatedRegistry{Latency: time.Second}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := slow.Lookup(ctx, "ABCPE1234F")
		assert.Equal(t, ErrorTimeout, GetCategory(err))
		assert.True(t, IsRetryable(err))
	})
}

type countingRegistry struct {
	calls int
}

func (c *countingRegistry) Lookup(_ context.Context, pan string) (*RegistryRecord, error) {
	c.calls++
	return &RegistryRecord{PAN: pan, Found: true}, nil
}

func TestCachedRegistry_ServesRepeatLookupsFromCache(t *testing.T) {
	next := &countingRegistry{}
	r := NewCachedRegistry(next, time.Minute)

	first, err := r.Lookup(context.Background(), "abcpe1234f")
	require.NoError(t, err)
	first.FullName = "mutated by caller"

	second, err := r.Lookup(context.Background(), "ABCPE1234F")
	require.NoError(t, err)
	assert.Equal(t, 1, next.calls)
	assert.Empty(t, second.FullName)
}

func TestVerificationProviders(t *testing.T) {
	ctx := context.Background()
	low := 40.0

	t.Run("ckyc returns registry bundle at full confidence", func(t *testing.T) {
		res, err := CKYCProvider{Registry: &SimulatedRegistry{}}.Verify(ctx, VerificationInput{PAN: "ABCPE1234F"})
		require.NoError(t, err)
		assert.Equal(t, models.VerificationCKYC, res.Method)
		assert.Equal(t, 100.0, res.Confidence)
		assert.Equal(t, "ABCPE1234F", res.Fields["pan"])
	})

	t.Run("digilocker keeps only the aadhaar last four", func(t *testing.T) {
		res, err := DigiLockerProvider{}.Verify(ctx, VerificationInput{Aadhaar: "2345 6789 0123"})
		require.NoError(t, err)
		assert.Equal(t, "0123", res.Fields["aadhaar_last4"])
		for _, v := range res.Fields {
			assert.NotEqual(t, "234567890123", v)
		}
	})

	t.Run("digilocker rejects malformed aadhaar", func(t *testing.T) {
		_, err := DigiLockerProvider{}.Verify(ctx, VerificationInput{Aadhaar: "1234"})
		assert.Equal(t, ErrorBadData, GetCategory(err))
	})

	t.Run("smartscan scores by completeness", func(t *testing.T) {
		res, err := SmartScanProvider{}.Verify(ctx, VerificationInput{Fields: map[string]any{"full_name": "A Kumar"}})
		require.NoError(t, err)
		assert.Equal(t, 65.0, res.Confidence)

		res, err = SmartScanProvider{}.Verify(ctx, VerificationInput{
			PAN:    "ABCPE1234F",
			Fields: map[string]any{"full_name": "A Kumar", "dob": "1990-01-01"},
		})
		require.NoError(t, err)
		assert.Equal(t, 95.0, res.Confidence)
	})

	t.Run("smartscan needs extracted fields", func(t *testing.T) {
		_, err := SmartScanProvider{}.Verify(ctx, VerificationInput{})
		assert.Equal(t, ErrorBadData, GetCategory(err))
	})

	t.Run("manual honours supplied confidence", func(t *testing.T) {
		res, err := ManualProvider{DefaultConfidence: 60}.Verify(ctx, VerificationInput{Confidence: &low})
		require.NoError(t, err)
		assert.Equal(t, 40.0, res.Confidence)

		res, err = ManualProvider{DefaultConfidence: 60}.Verify(ctx, VerificationInput{})
		require.NoError(t, err)
		assert.Equal(t, 60.0, res.Confidence)
	})
}

func TestSimulatedSigner(t *testing.T) {
	otp, err := SimulatedSigner{}.Initiate(context.Background(), models.SignatureAadhaarOTP)
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^\d{6}$`), otp.Proof)
	assert.Regexp(t, regexp.MustCompile(`^ESIGN-[0-9A-F]{12}$`), otp.Reference)

	dsc, err := SimulatedSigner{}.Initiate(context.Background(), models.SignatureDSC)
	require.NoError(t, err)
	assert.Len(t, dsc.Proof, 32)
	assert.NotEqual(t, otp.Reference, dsc.Reference)
}

type failingGateway struct {
	err error
}

func (f failingGateway) Initiate(context.Context, models.PaymentMethod, float64) (string, error) {
	return "", f.err
}

func (f failingGateway) Confirm(context.Context, string) (bool, error) {
	return false, f.err
}

func TestBreakerGateway(t *testing.T) {
	t.Run("opens after consecutive outages", func(t *testing.T) {
		outage := NewProviderError(ErrorProviderOutage, "gateway", "down", errors.New("503"))
		g := NewBreakerGateway(failingGateway{err: outage}, circuit.New("gateway", circuit.WithFailureThreshold(2)), nil)

		_, err := g.Initiate(context.Background(), models.PaymentUPI, 500)
		require.Error(t, err)
		_, err = g.Initiate(context.Background(), models.PaymentUPI, 500)
		require.Error(t, err)

		_, err = g.Confirm(context.Background(), "PG-1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circuit open")
	})

	t.Run("rejections do not trip the breaker", func(t *testing.T) {
		rejected := NewProviderError(ErrorRejected, "gateway", "declined", nil)
		breaker := circuit.New("gateway", circuit.WithFailureThreshold(1))
		g := NewBreakerGateway(failingGateway{err: rejected}, breaker, nil)

		_, _ = g.Initiate(context.Background(), models.PaymentCard, 500)
		assert.False(t, breaker.IsOpen())
	})

	t.Run("simulated gateway confirms its own references", func(t *testing.T) {
		g := NewBreakerGateway(NewSimulatedGateway(), circuit.New("gateway"), nil)
		ref, err := g.Initiate(context.Background(), models.PaymentUPI, 500)
		require.NoError(t, err)

		ok, err := g.Confirm(context.Background(), ref)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = g.Confirm(context.Background(), "PG-UNKNOWN")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSimulatedAgentRegistry(t *testing.T) {
	r := NewSimulatedAgentRegistry(
		AgentCredential{Agent: Agent{ID: "sbi-2024-001", Name: "Rajesh Kumar", PopID: "POP-SBI-00142"}, PIN: "1234"},
	)

	t.Run("lookup normalizes the id", func(t *testing.T) {
		agent, err := r.Lookup(context.Background(), " sbi-2024-001 ")
		require.NoError(t, err)
		assert.Equal(t, "SBI-2024-001", agent.ID)
		assert.Equal(t, "POP-SBI-00142", agent.PopID)
	})

	t.Run("unknown agent", func(t *testing.T) {
		_, err := r.Lookup(context.Background(), "HDFC-2024-005")
		assert.Equal(t, ErrorNotFound, GetCategory(err))
	})

	t.Run("correct pin", func(t *testing.T) {
		agent, err := r.Authenticate(context.Background(), "SBI-2024-001", "1234")
		require.NoError(t, err)
		assert.Equal(t, "Rajesh Kumar", agent.Name)
	})

	t.Run("wrong pin and unknown id look the same", func(t *testing.T) {
		_, wrongPIN := r.Authenticate(context.Background(), "SBI-2024-001", "4321")
		_, unknown := r.Authenticate(context.Background(), "NOBODY-1", "1234")
		assert.Equal(t, ErrorRejected, GetCategory(wrongPIN))
		assert.Equal(t, ErrorRejected, GetCategory(unknown))
		assert.Equal(t, wrongPIN.Error(), unknown.Error())
	})

	t.Run("returned agent is a copy", func(t *testing.T) {
		agent, err := r.Lookup(context.Background(), "SBI-2024-001")
		require.NoError(t, err)
		agent.Name = "changed"
		again, err := r.Lookup(context.Background(), "SBI-2024-001")
		require.NoError(t, err)
		assert.Equal(t, "Rajesh Kumar", again.Name)
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := r.Lookup(ctx, "SBI-2024-001")
		assert.Equal(t, ErrorTimeout, GetCategory(err))
	})
}

func TestDefaultAgents(t *testing.T) {
	r := NewSimulatedAgentRegistry()
	for _, c := range DefaultAgents() {
		agent, err := r.Authenticate(context.Background(), c.Agent.ID, c.PIN)
		require.NoError(t, err, c.Agent.ID)
		assert.NotEmpty(t, agent.PopID)
	}
}
