// Package domain holds typed identifiers shared across onboarding modules.
//
// Every identifier is a UUID under a distinct named type so a payment id can
// never be passed where a session id is expected.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
)

type (
	SessionID      uuid.UUID
	PaymentID      uuid.UUID
	ConsentID      uuid.UUID
	VerificationID uuid.UUID
)

func (id SessionID) String() string      { return uuid.UUID(id).String() }
func (id PaymentID) String() string      { return uuid.UUID(id).String() }
func (id ConsentID) String() string      { return uuid.UUID(id).String() }
func (id VerificationID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id PaymentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id ConsentID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id VerificationID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewSessionID() SessionID           { return SessionID(uuid.New()) }
func NewPaymentID() PaymentID           { return PaymentID(uuid.New()) }
func NewConsentID() ConsentID           { return ConsentID(uuid.New()) }
func NewVerificationID() VerificationID { return VerificationID(uuid.New()) }

// ParseSessionID parses a session id received at a trust boundary.
func ParseSessionID(s string) (SessionID, error) {
	u, err := parseUUID(s, "session")
	return SessionID(u), err
}

// ParsePaymentID parses a payment id received at a trust boundary.
func ParsePaymentID(s string) (PaymentID, error) {
	u, err := parseUUID(s, "payment")
	return PaymentID(u), err
}

func ParseConsentID(s string) (ConsentID, error) {
	u, err := parseUUID(s, "consent")
	return ConsentID(u), err
}

func ParseVerificationID(s string) (VerificationID, error) {
	u, err := parseUUID(s, "verification")
	return VerificationID(u), err
}

// parseUUID rejects empty, malformed and nil UUIDs.
func parseUUID(s, kind string) (uuid.UUID, error) {
	if strings.TrimSpace(s) == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return u, nil
}
