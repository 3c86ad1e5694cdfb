package jwttoken

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
)

const signingKey = "test-signing-key-of-at-least-32-bytes"

var jwtService = NewJWTService(signingKey, "test-issuer", "regulator-api")

func Test_GenerateAccessToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("pfrda-7", "regulator", time.Hour)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pfrda-7", claims.Subject)
	assert.Equal(t, "regulator", claims.Role)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("pfrda-7", "regulator", -time.Hour)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, "token has expired", err.Error())
}

func Test_ValidateToken_WrongAudienceOrKey(t *testing.T) {
	other := NewJWTService(signingKey, "test-issuer", "subscriber-api")
	token, err := other.GenerateAccessToken("pfrda-7", "regulator", time.Hour)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))

	forged := NewJWTService("another-signing-key-of-32-bytes!!", "test-issuer", "regulator-api")
	token, err = forged.GenerateAccessToken("pfrda-7", "regulator", time.Hour)
	require.NoError(t, err)
	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		Role: "regulator",
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "pfrda-7",
			Issuer:    "test-issuer",
			Audience:  []string{"regulator-api"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	assert.Equal(t, dErrors.CodeUnauthorized, dErrors.CodeOf(err))
}

func Test_Validator(t *testing.T) {
	token, err := jwtService.GenerateAccessToken("pfrda-7", "regulator", time.Hour)
	require.NoError(t, err)

	claims, err := jwtService.Validator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "pfrda-7", claims.Subject)
	assert.Equal(t, "regulator", claims.Role)
	assert.NotEmpty(t, claims.JTI)
}
