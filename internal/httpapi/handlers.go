package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/audit"
	"collections-dialer/internal/auth"
	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/internal/history"
	"collections-dialer/internal/rbac"
	"collections-dialer/internal/reporting"
	"collections-dialer/pkg/logger"
)

// DefaultPersistWait bounds how long a wrap-up request waits for the durable
// write before answering with a warning.
const DefaultPersistWait = 6 * time.Second

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.
type Handlers struct {
	Auth    *auth.Manager
	Desks   *dialer.Registry
	Reports *reporting.Service
	Audit   *audit.Service

	PersistWait time.Duration
}

// --- Auth ---

type loginRequest struct {
	AgentID string `json:"agent_id"`
	Role    string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: Credentials are not checked. The route is only registered outside production.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.AgentID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "agent_id, role required"})
		return
	}
	if !rbac.Valid(req.Role) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown role"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.AgentID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Refresh trades a refresh token for a new pair so a desk stays signed in
// across a shift.
func (h Handlers) Refresh(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.RefreshToken == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "refresh_token required"})
		return
	}
	pair, err := h.Auth.Refresh(req.RefreshToken, time.Now())
	if err != nil {
		logger.FromGin(c).Debug("refresh rejected", "err", err)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}
	c.JSON(http.StatusOK, pair)
}

// Me echoes the caller's identity.
func (h Handlers) Me(c *gin.Context) {
	id, _ := auth.IdentityFrom(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"agent_id": id.AgentID, "role": id.Role})
}

// desk resolves the caller's own desk, aborting the request on failure.
func (h Handlers) desk(c *gin.Context) (*dialer.Desk, bool) {
	if h.Desks == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "desks not configured"})
		return nil, false
	}
	agentID, err := auth.AgentID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "agent_id required"})
		return nil, false
	}
	d, err := h.Desks.Desk(c.Request.Context(), agentID)
	if err != nil {
		writeError(c, err)
		return nil, false
	}
	return d, true
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, calls.ErrSessionBusy),
		errors.Is(err, calls.ErrInvalidState),
		errors.Is(err, calls.ErrAlreadyRecorded):
		return http.StatusConflict
	case errors.Is(err, calls.ErrMissingCallback),
		errors.Is(err, calls.ErrInvalidOutcome),
		errors.Is(err, calls.ErrInvalidNumber),
		errors.Is(err, reporting.ErrInvalidRequest),
		errors.Is(err, dialer.ErrNoAgent),
		errors.Is(err, errToggleBody):
		return http.StatusBadRequest
	case errors.Is(err, calls.ErrUnknownSession),
		errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, rbac.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, calls.ErrDialLaunchFailed):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.FromGin(c).Error("request failed", "err", err)
		c.AbortWithStatusJSON(status, gin.H{"error": "internal error"})
		return
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
