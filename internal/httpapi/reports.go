package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/auth"
	"collections-dialer/internal/rbac"
	"collections-dialer/internal/reporting"
)

// Summary reports the caller's figures. Supervisors and admins may name
// another agent with ?agent_id=. The range defaults to the last 24 hours.
func (h Handlers) Summary(c *gin.Context) {
	if h.Reports == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "reporting not configured"})
		return
	}
	id, ok := auth.IdentityFrom(c.Request.Context())
	if !ok || id.AgentID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return
	}
	agentID, err := rbac.TargetAgent(id.AgentID, id.Role, c.Query("agent_id"))
	if err != nil {
		writeError(c, err)
		return
	}

	to := time.Now().UTC()
	from := to.Add(-24 * time.Hour)
	if v := c.Query("from"); v != "" {
		if from, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
			return
		}
	}
	if v := c.Query("to"); v != "" {
		if to, err = time.Parse(time.RFC3339, v); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
			return
		}
	}

	out, err := h.Reports.Summary(c.Request.Context(), reporting.SummaryRequest{
		AgentID: agentID,
		Range:   reporting.TimeRange{From: from, To: to},
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}
