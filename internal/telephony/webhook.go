package telephony

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/pkg/logger"
)

const headerWebhookToken = "X-Webhook-Token"

// InboundForm captures the fields the softphone or PBX posts when a call
// starts ringing. Sent as application/x-www-form-urlencoded.
type InboundForm struct {
	CallID     string
	From       string
	CallerName string
	Agent      string
	CustomerID string
}

func ParseInboundCall(r *http.Request) (InboundForm, error) {
	if err := r.ParseForm(); err != nil {
		return InboundForm{}, err
	}
	return InboundForm{
		CallID:     strings.TrimSpace(r.PostFormValue("CallId")),
		From:       callerNumber(r.PostFormValue("From")),
		CallerName: strings.TrimSpace(r.PostFormValue("CallerName")),
		Agent:      strings.TrimSpace(r.PostFormValue("Agent")),
		CustomerID: strings.TrimSpace(r.PostFormValue("CustomerId")),
	}, nil
}

// callerNumber maps withheld caller ids to an empty number.
func callerNumber(s string) string {
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "anonymous", "unknown", "private", "restricted":
		return ""
	}
	return s
}

func (f InboundForm) CallerInfo() dialer.CallerInfo {
	return dialer.CallerInfo{Number: f.From, Name: f.CallerName, CustomerID: f.CustomerID}
}

// Desks resolves the desk an inbound call rings on. Only desks an agent has
// already opened are rung. *dialer.Registry satisfies it.
type Desks interface {
	Lookup(agentID string) (*dialer.Desk, bool)
}

// InboundWebhookHandler converts the softphone's ringing notification into an
// incoming session on the agent's desk. No call decisions are made here.
type InboundWebhookHandler struct {
	Desks Desks
	// Token, when set, must match the X-Webhook-Token header.
	Token string
}

func (h InboundWebhookHandler) HandleInboundCall(c *gin.Context) {
	log := logger.FromGin(c)

	if h.Desks == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "desks not configured"})
		return
	}
	if h.Token != "" && subtle.ConstantTimeCompare([]byte(c.GetHeader(headerWebhookToken)), []byte(h.Token)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid webhook token"})
		return
	}

	form, err := ParseInboundCall(c.Request)
	if err != nil {
		log.Warn("inbound webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	if form.Agent == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Agent is required"})
		return
	}

	desk, ok := h.Desks.Lookup(form.Agent)
	if !ok {
		log.Info("inbound call for agent without a desk", "agent_id", form.Agent, "provider_call_id", form.CallID)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown agent"})
		return
	}

	id, err := desk.Controller.ReceiveIncoming(c.Request.Context(), form.CallerInfo())
	if err != nil {
		if errors.Is(err, calls.ErrSessionBusy) {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "agent busy"})
			return
		}
		log.Error("inbound call rejected", "agent_id", form.Agent, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "inbound call failed"})
		return
	}

	logger.ForCall(log, form.Agent, string(id)).Info("inbound call ringing", "provider_call_id", form.CallID)
	c.JSON(http.StatusOK, gin.H{"session_id": id, "state": calls.StateRinging})
}
