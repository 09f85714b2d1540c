// Package principal resolves bearer tokens into the acting user: the token
// must verify and its user must hold an unexpired session.
package principal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	dErrors "casedesk/pkg/domain-errors"
	"casedesk/pkg/platform/sentinel"
	"casedesk/pkg/requestcontext"
)

// Provider implements the auth middleware's PrincipalResolver.
type Provider struct {
	validator *JWTValidator
	sessions  SessionStore
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Provider)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Provider) {
		p.logger = logger
	}
}

// WithClock overrides the session expiry clock.
func WithClock(now func() time.Time) Option {
	return func(p *Provider) {
		p.now = now
	}
}

func NewProvider(validator *JWTValidator, sessions SessionStore, opts ...Option) *Provider {
	p := &Provider{
		validator: validator,
		sessions:  sessions,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolve validates token and checks the user's session.
func (p *Provider) Resolve(ctx context.Context, token string) (requestcontext.Principal, error) {
	claims, err := p.validator.Validate(token)
	if err != nil {
		return requestcontext.Principal{}, err
	}

	session, err := p.sessions.Find(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "no active session")
		}
		return requestcontext.Principal{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if !session.Active(p.now()) {
		p.logger.DebugContext(ctx, "session expired",
			"username", claims.Username,
			"expires_at", session.ExpiresAt,
		)
		return requestcontext.Principal{}, dErrors.New(dErrors.CodeUnauthorized, "session expired")
	}
	return claims.Principal(), nil
}
