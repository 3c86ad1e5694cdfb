// Package signature keeps pending e-sign references: single-use capabilities,
// scoped to a session, that expire. Only a bcrypt hash of the expected proof
// is stored.
package signature

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"onboard/internal/onboarding/models"
)

// MaxProofAttempts is the number of wrong proofs a reference survives. The
// attempt that reaches it revokes the reference.
const MaxProofAttempts = 5

// Store holds pending references. Get does not remove the reference; Consume
// removes it and succeeds for at most one caller. Missing and expired
// references both yield sentinel.ErrNotFound.
type Store interface {
	Put(ctx context.Context, pending *models.PendingSignature) error
	Get(ctx context.Context, reference string) (*models.PendingSignature, error)
	// RecordFailure counts a wrong proof against the reference and returns
	// the attempts so far. The counter expires with the reference.
	RecordFailure(ctx context.Context, pending *models.PendingSignature) (int, error)
	Consume(ctx context.Context, reference string) error
}

// HashProof hashes an OTP or DSC token for storage.
func HashProof(proof string) (string, error) {
	if proof == "" {
		return "", errors.New("empty signature proof")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(proof), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// MatchProof reports whether proof matches a hash from HashProof.
func MatchProof(hash, proof string) bool {
	if hash == "" || proof == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(proof)) == nil
}
