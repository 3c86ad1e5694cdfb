package middleware

import (
	"log/slog"
	"net/http"

	id "onboard/pkg/domain"
	dErrors "onboard/pkg/domain-errors"
	"onboard/pkg/platform/httputil"
	"onboard/pkg/requestcontext"
)

// HeaderSessionID carries the onboarding session on subscriber requests.
const HeaderSessionID = "Session-Id"

// RequireSession parses the Session-Id header into the request context.
func RequireSession(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			raw := r.Header.Get(HeaderSessionID)
			if raw == "" {
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Session-Id header is required"))
				return
			}
			sessionID, err := id.ParseSessionID(raw)
			if err != nil {
				logger.WarnContext(ctx, "malformed session id header",
					"request_id", GetRequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Session-Id header is malformed"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithSessionID(ctx, sessionID)))
		})
	}
}
