package auth_test

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"onboard/pkg/platform/middleware/admin"
	"onboard/pkg/platform/middleware/auth"
	"onboard/pkg/requestcontext"
)

type stubValidator struct {
	claims *auth.JWTClaims
	err    error
}

func (v stubValidator) ValidateToken(string) (*auth.JWTClaims, error) {
	return v.claims, v.err
}

func chain(v auth.JWTValidator, reached *bool, actor *string) http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*reached = true
		*actor = requestcontext.Actor(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	return auth.RequireAuth(v, logger)(admin.RequireRole(admin.RoleRegulator, logger)(inner))
}

func TestRegulatorChain(t *testing.T) {
	tests := []struct {
		name       string
		header     string
		validator  stubValidator
		wantStatus int
		wantActor  string
	}{
		{
			name:       "missing header",
			validator:  stubValidator{},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "invalid token",
			header:     "Bearer nope",
			validator:  stubValidator{err: errors.New("bad signature")},
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "wrong role",
			header:     "Bearer ok",
			validator:  stubValidator{claims: &auth.JWTClaims{Subject: "ops-1", Role: "agent"}},
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "regulator",
			header:     "Bearer ok",
			validator:  stubValidator{claims: &auth.JWTClaims{Subject: "pfrda-7", Role: admin.RoleRegulator}},
			wantStatus: http.StatusNoContent,
			wantActor:  "pfrda-7",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var reached bool
			var actor string
			r := httptest.NewRequest(http.MethodGet, "/api/admin/dashboard", nil)
			if tt.header != "" {
				r.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			chain(tt.validator, &reached, &actor).ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantStatus == http.StatusNoContent, reached)
			assert.Equal(t, tt.wantActor, actor)
		})
	}
}
