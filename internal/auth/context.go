package auth

import (
	"context"
	"errors"
)

var ErrNoIdentity = errors.New("auth: no identity in context")

// Identity is who drives a request: the agent whose desk it acts on, and
// their role.
type Identity struct {
	AgentID string
	Role    string
}

type identityKey struct{}

func WithIdentity(ctx context.Context, agentID, role string) context.Context {
	return context.WithValue(ctx, identityKey{}, Identity{AgentID: agentID, Role: role})
}

// IdentityFrom returns the identity set by RequireAccessToken.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

func AgentID(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.AgentID != "" {
		return id.AgentID, nil
	}
	return "", ErrNoIdentity
}

func Role(ctx context.Context) (string, error) {
	if id, ok := IdentityFrom(ctx); ok && id.Role != "" {
		return id.Role, nil
	}
	return "", ErrNoIdentity
}
