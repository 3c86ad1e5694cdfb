// Package jwttoken mints and validates the HS256 bearer tokens used on the
// regulator and agent APIs.
package jwttoken

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	dErrors "onboard/pkg/domain-errors"
	authmw "onboard/pkg/platform/middleware/auth"
)

// AdminAudience is the aud claim regulator tokens are issued for.
const AdminAudience = "onboard-admin"

// Claims carries the console role alongside the registered claims.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// JWTService signs and checks regulator tokens with one shared key.
type JWTService struct {
	signingKey []byte
	issuer     string
	audience   string
	parser     *jwt.Parser
}

func NewJWTService(signingKey, issuer, audience string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		audience:   audience,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(issuer),
			jwt.WithAudience(audience),
			jwt.WithExpirationRequired(),
		),
	}
}

// GenerateAccessToken issues a token for subject with role.
func (s *JWTService) GenerateAccessToken(subject, role string, expiresIn time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    s.issuer,
			Audience:  jwt.ClaimStrings{s.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
}

// ValidateToken parses tokenString. Every failure is CodeUnauthorized; only
// expiry gets its own message.
func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := s.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return s.signingKey, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
	case err != nil:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	case claims.Subject == "":
		return nil, dErrors.New(dErrors.CodeUnauthorized, "token subject is required")
	}
	return claims, nil
}

// Validator exposes the service to the bearer-token middleware.
func (s *JWTService) Validator() authmw.JWTValidator {
	return middlewareValidator{s}
}

type middlewareValidator struct{ s *JWTService }

func (v middlewareValidator) ValidateToken(tokenString string) (*authmw.JWTClaims, error) {
	claims, err := v.s.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	return &authmw.JWTClaims{Subject: claims.Subject, Role: claims.Role, JTI: claims.ID}, nil
}
