package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "onboard/pkg/domain-errors"
)

// parsers normalises every Parse*ID to a common shape.
var parsers = map[string]func(string) (string, error){
	"session": func(s string) (string, error) {
		id, err := ParseSessionID(s)
		return id.String(), err
	},
	"payment": func(s string) (string, error) {
		id, err := ParsePaymentID(s)
		return id.String(), err
	},
	"consent": func(s string) (string, error) {
		id, err := ParseConsentID(s)
		return id.String(), err
	},
	"verification": func(s string) (string, error) {
		id, err := ParseVerificationID(s)
		return id.String(), err
	},
}

func TestParseIDs(t *testing.T) {
	valid := uuid.New()
	tests := []struct {
		name    string
		input   string
		want    string
		wantMsg string
	}{
		{name: "lowercase uuid", input: valid.String(), want: valid.String()},
		{name: "uppercase uuid", input: strings.ToUpper(valid.String()), want: valid.String()},
		{name: "empty header", input: "", wantMsg: "id is required"},
		{name: "whitespace", input: "   ", wantMsg: "id is required"},
		{name: "nil uuid", input: uuid.Nil.String(), wantMsg: "must not be nil"},
		{name: "sql fragment", input: "'; DROP TABLE sessions;--", wantMsg: "invalid"},
		{name: "embedded null byte", input: "550e8400\x00-e29b-41d4-a716-446655440000", wantMsg: "invalid"},
		{name: "oversized", input: strings.Repeat("a", 1000), wantMsg: "invalid"},
	}

	for kind, parse := range parsers {
		for _, tt := range tests {
			t.Run(kind+"/"+tt.name, func(t *testing.T) {
				got, err := parse(tt.input)
				if tt.wantMsg == "" {
					require.NoError(t, err)
					assert.Equal(t, tt.want, got)
					return
				}
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
				assert.Contains(t, err.Error(), kind)
				assert.Contains(t, err.Error(), tt.wantMsg)
			})
		}
	}
}

func TestNewIDs(t *testing.T) {
	assert.True(t, SessionID{}.IsNil())
	assert.False(t, NewSessionID().IsNil())
	assert.False(t, NewPaymentID().IsNil())
	assert.False(t, NewConsentID().IsNil())
	assert.False(t, NewVerificationID().IsNil())
	assert.NotEqual(t, NewSessionID(), NewSessionID())
}
