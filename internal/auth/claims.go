package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims carry the desk an agent drives. Supervisors carry their own id and
// reach other desks only through read-only report routes.
//
// Both token types carry the role so that a refresh over a long shift
// re-issues the same access.
type Claims struct {
	jwt.RegisteredClaims

	AgentID   string    `json:"agent_id"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

func (c Claims) Identity() Identity {
	return Identity{AgentID: c.AgentID, Role: c.Role}
}
