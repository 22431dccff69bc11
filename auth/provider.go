package auth

import (
	chaterrors "chatline/errors"
	"context"
	"sync"
	"time"
)

type contextKey string

const identityKey contextKey = "identity"

type identity struct {
	userID    string
	tokenID   string
	expiresAt time.Time
}

// Provider is the authentication provider: it reads the current user from a
// request context and signs users out by revoking their token.
// Credentials are never handled here.
type Provider struct {
	key           []byte
	tokenDuration time.Duration
	clock         func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // token id -> expiry
}

func NewProvider(secret string, tokenDuration time.Duration) *Provider {
	return &Provider{
		key:           []byte(secret),
		tokenDuration: tokenDuration,
		clock:         time.Now,
		revoked:       make(map[string]time.Time),
	}
}

// Authenticate validates a bearer token and injects the user identity into ctx.
func (p *Provider) Authenticate(ctx context.Context, token string) (context.Context, error) {
	claims, err := p.ValidateToken(token)
	if err != nil {
		return ctx, err
	}
	return context.WithValue(ctx, identityKey, identity{
		userID:    claims.UserID,
		tokenID:   claims.ID,
		expiresAt: expiry(claims),
	}), nil
}

// CurrentUser returns the authenticated user, absent while auth is not resolved.
func (p *Provider) CurrentUser(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(identityKey).(identity)
	if !ok || id.userID == "" {
		return "", false
	}
	return id.userID, true
}

// SignOut revokes the token the request was authenticated with.
func (p *Provider) SignOut(ctx context.Context) error {
	id, ok := ctx.Value(identityKey).(identity)
	if !ok {
		return chaterrors.ErrUnauthenticated
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pruneLocked()
	p.revoked[id.tokenID] = id.expiresAt
	return nil
}

// Prune forgets revoked tokens that have expired anyway and returns how many.
func (p *Provider) Prune() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pruneLocked()
}

func (p *Provider) isRevoked(tokenID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.revoked[tokenID]
	return ok
}

func (p *Provider) pruneLocked() int {
	now := p.clock()
	pruned := 0
	for id, expiresAt := range p.revoked {
		if !expiresAt.IsZero() && expiresAt.Before(now) {
			delete(p.revoked, id)
			pruned++
		}
	}
	return pruned
}
