package rbac

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/auth"
)

// RequireDesk admits requests bound to an agent whose role is one of allowed.
// Admins pass every role check. A missing identity is 401, a disallowed role 403.
func RequireDesk(allowed ...string) gin.HandlerFunc {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, r := range allowed {
		allowedSet[r] = struct{}{}
	}

	return func(c *gin.Context) {
		id, ok := auth.IdentityFrom(c.Request.Context())
		if !ok || id.AgentID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
			return
		}
		if id.Role == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if _, ok := allowedSet[id.Role]; !ok && !IsAdmin(id.Role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
