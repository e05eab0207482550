package auth

import (
	"context"
	"net/http"
	"strings"

	"gozon/internal/domain"
	"gozon/internal/session"
)

// Classifier resolves an authenticated id to an operator or a customer.
type Classifier interface {
	Classify(ctx context.Context, actorID int64) (domain.Actor, error)
}

type Authenticator struct {
	tokens     *Tokens
	sessions   session.Store
	classifier Classifier
}

func NewAuthenticator(tokens *Tokens, sessions session.Store, classifier Classifier) *Authenticator {
	return &Authenticator{tokens: tokens, sessions: sessions, classifier: classifier}
}

// Authenticate checks the bearer token of r and classifies its subject.
func (a *Authenticator) Authenticate(r *http.Request) (domain.Actor, *Claims, error) {
	raw, ok := bearer(r.Header.Get("Authorization"))
	if !ok {
		return domain.Actor{}, nil, domain.Unauthorized("missing bearer token")
	}
	return a.AuthenticateToken(r.Context(), raw)
}

// AuthenticateToken verifies raw, rejects revoked sessions and classifies the subject.
func (a *Authenticator) AuthenticateToken(ctx context.Context, raw string) (domain.Actor, *Claims, error) {
	if raw == "" {
		return domain.Actor{}, nil, domain.Unauthorized("missing bearer token")
	}
	claims, err := a.tokens.Verify(raw)
	if err != nil {
		return domain.Actor{}, nil, err
	}
	revoked, err := a.sessions.IsRevoked(ctx, claims.ID)
	if err != nil {
		return domain.Actor{}, nil, domain.Internal("failed to check session", err)
	}
	if revoked {
		return domain.Actor{}, nil, domain.Unauthorized("token has been revoked")
	}
	actorID, err := claims.ActorID()
	if err != nil {
		return domain.Actor{}, nil, err
	}
	actor, err := a.classifier.Classify(ctx, actorID)
	if err != nil {
		return domain.Actor{}, nil, err
	}
	return actor, claims, nil
}

// Logout revokes the token described by claims for the rest of its lifetime.
func (a *Authenticator) Logout(ctx context.Context, claims *Claims) error {
	if err := a.sessions.Revoke(ctx, claims.ID, claims.Remaining(a.tokens.now())); err != nil {
		return domain.Internal("failed to revoke session", err)
	}
	return nil
}

func bearer(header string) (string, bool) {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(header[len(prefix):]), true
}

type claimsKey struct{}

func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}
