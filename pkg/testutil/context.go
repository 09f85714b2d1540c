package testutil

import (
	"net/http"
	"time"

	"casedesk/pkg/requestcontext"
)

// WithPrincipal attaches an authenticated principal to the request context.
// This simulates what the auth middleware does once a token resolves.
func WithPrincipal(req *http.Request, p requestcontext.Principal) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), p))
}

// WithRequestContext attaches a principal, request ID and fixed clock. Handler
// tests use it when the service reads all three from the context.
func WithRequestContext(req *http.Request, p requestcontext.Principal, requestID string, now time.Time) *http.Request {
	ctx := requestcontext.WithActor(req.Context(), p)
	ctx = requestcontext.WithRequestID(ctx, requestID)
	ctx = requestcontext.WithTime(ctx, now)
	return req.WithContext(ctx)
}
