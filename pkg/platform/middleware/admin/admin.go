package admin

import (
	"log/slog"
	"net/http"

	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/platform/middleware/auth"
	"onboard/pkg/requestcontext"
)

const (
	// RoleRegulator is the only role allowed on the regulator API.
	RoleRegulator = "regulator"
	// RoleAgent is carried by point-of-presence agent tokens.
	RoleAgent = "pop_agent"
)

// RequireRole rejects authenticated callers whose role is not role. It must
// run after auth.RequireAuth.
func RequireRole(role string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if got := auth.GetRole(ctx); got != role {
				logger.WarnContext(ctx, "forbidden - role mismatch",
					"actor", requestcontext.Actor(ctx),
					"role", got,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeForbidden, role+" role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
