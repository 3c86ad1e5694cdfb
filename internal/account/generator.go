// Package account derives the permanent retirement account number issued when
// onboarding completes.
//
// Numbers are a pure function of the session id, so a retried terminal
// transition always yields the number already issued.
package account

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"regexp"

	dErrors "onboard/pkg/domain-errors"
)

// DefaultPrefix is the leading segment of every issued number.
const DefaultPrefix = "1100"

var (
	numberPattern = regexp.MustCompile(`^\d{4} \d{4} \d{4}$`)
	prefixPattern = regexp.MustCompile(`^\d{4}$`)
)

// Generator issues account numbers of the form "PPPP XXXX YYYY".
type Generator struct {
	prefix string
}

// NewGenerator validates prefix and returns a Generator.
func NewGenerator(prefix string) (*Generator, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if !prefixPattern.MatchString(prefix) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "account prefix must be exactly 4 digits")
	}
	return &Generator{prefix: prefix}, nil
}

// Generate maps a session id to its account number. The two trailing segments
// are the first two big-endian uint16 words of SHA-256(sessionID), each reduced
// mod 9000 and offset by 1000.
func (g *Generator) Generate(sessionID string) string {
	digest := sha256.Sum256([]byte(sessionID))
	seg2 := binary.BigEndian.Uint16(digest[0:2])%9000 + 1000
	seg3 := binary.BigEndian.Uint16(digest[2:4])%9000 + 1000
	return fmt.Sprintf("%s %d %d", g.prefix, seg2, seg3)
}

// Validate reports whether candidate is three space-separated groups of four digits.
func Validate(candidate string) bool {
	return numberPattern.MatchString(candidate)
}
