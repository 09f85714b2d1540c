package auth

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	dErrors "casedesk/pkg/domain-errors"
	request "casedesk/pkg/platform/middleware/request"
	"casedesk/pkg/requestcontext"
)

// PrincipalResolver turns a bearer token into the authenticated principal.
// Implementations return a CodeUnauthorized error for bad or expired credentials;
// any other error is treated as an infrastructure failure.
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (requestcontext.Principal, error)
}

// writeJSONError writes a JSON error response with the given status code and error details.
func writeJSONError(w http.ResponseWriter, status int, errCode, errDesc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(fmt.Appendf(nil, `{"error":"%s","error_description":"%s"}`, errCode, errDesc))
}

// RequireAuth rejects requests without a valid bearer token and an active session.
func RequireAuth(resolver PrincipalResolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := request.GetRequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || strings.TrimSpace(token) == "" {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Missing or invalid Authorization header")
				return
			}

			principal, err := resolver.Resolve(ctx, strings.TrimSpace(token))
			if err != nil {
				if dErrors.HasCode(err, dErrors.CodeUnauthorized) {
					logger.WarnContext(ctx, "unauthorized access - invalid token",
						"error", err,
						"request_id", requestID,
					)
					writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired token")
					return
				}
				logger.ErrorContext(ctx, "failed to resolve principal",
					"error", err,
					"request_id", requestID,
				)
				writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to validate token")
				return
			}

			ctx = requestcontext.WithActor(ctx, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
