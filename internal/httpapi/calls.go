package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
)

type outgoingRequest struct {
	Number       string `json:"number"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
}

// StartOutgoing dials a number through the agent's softphone.
func (h Handlers) StartOutgoing(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	var req outgoingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	var ref *calls.CustomerRef
	if req.CustomerID != "" || req.CustomerName != "" {
		ref = &calls.CustomerRef{ID: req.CustomerID, DisplayName: req.CustomerName}
	}

	id, err := d.Controller.StartOutgoing(c.Request.Context(), req.Number, ref)
	if err != nil {
		if errors.Is(err, calls.ErrDialLaunchFailed) {
			c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{
				"error":      err.Error(),
				"session_id": id,
				"state":      calls.StateFailed,
			})
			return
		}
		writeError(c, err)
		return
	}
	h.writeCurrent(c, d, http.StatusCreated)
}

type incomingRequest struct {
	Number     string `json:"number"`
	Name       string `json:"name"`
	CustomerID string `json:"customer_id"`
}

// ReceiveIncoming registers a call ringing on the agent's softphone.
func (h Handlers) ReceiveIncoming(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	var req incomingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if _, err := d.Controller.ReceiveIncoming(c.Request.Context(), dialer.CallerInfo{
		Number:     req.Number,
		Name:       req.Name,
		CustomerID: req.CustomerID,
	}); err != nil {
		writeError(c, err)
		return
	}
	h.writeCurrent(c, d, http.StatusCreated)
}

// action adapts a no-argument controller operation to a handler.
func (h Handlers) action(op func(d *dialer.Desk, c *gin.Context) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		d, ok := h.desk(c)
		if !ok {
			return
		}
		if err := op(d, c); err != nil {
			writeError(c, err)
			return
		}
		h.writeCurrent(c, d, http.StatusOK)
	}
}

func (h Handlers) Accept() gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error { return d.Controller.Accept(c.Request.Context()) })
}

func (h Handlers) Reject() gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error { return d.Controller.Reject(c.Request.Context()) })
}

func (h Handlers) MarkAnswered() gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error { return d.Controller.MarkAnswered(c.Request.Context()) })
}

func (h Handlers) MarkEnded() gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error { return d.Controller.MarkEnded(c.Request.Context()) })
}

type failRequest struct {
	Reason string `json:"reason"`
}

func (h Handlers) Fail() gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error {
		var req failRequest
		// The body is optional.
		_ = c.ShouldBindJSON(&req)
		return d.Controller.Fail(c.Request.Context(), req.Reason)
	})
}

type toggleRequest struct {
	On *bool `json:"on"`
}

func (h Handlers) toggle(set func(d *dialer.Desk, c *gin.Context, on bool) error) gin.HandlerFunc {
	return h.action(func(d *dialer.Desk, c *gin.Context) error {
		var req toggleRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.On == nil {
			return errToggleBody
		}
		return set(d, c, *req.On)
	})
}

var errToggleBody = errors.New("body must be {\"on\": true|false}")

func (h Handlers) SetMuted() gin.HandlerFunc {
	return h.toggle(func(d *dialer.Desk, c *gin.Context, on bool) error {
		return d.Controller.SetMuted(c.Request.Context(), on)
	})
}

func (h Handlers) SetSpeaker() gin.HandlerFunc {
	return h.toggle(func(d *dialer.Desk, c *gin.Context, on bool) error {
		return d.Controller.SetSpeakerOn(c.Request.Context(), on)
	})
}

// Foreground reports that the operator is back at the desk application.
func (h Handlers) Foreground(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	d.Foreground.Fire()
	h.writeCurrent(c, d, http.StatusOK)
}

// Current returns the live session, or {"state":"idle"} when there is none.
func (h Handlers) Current(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	h.writeCurrent(c, d, http.StatusOK)
}

func (h Handlers) writeCurrent(c *gin.Context, d *dialer.Desk, status int) {
	s, ok := d.Controller.Current()
	if !ok {
		c.JSON(status, gin.H{"state": calls.StateIdle, "pending_wrapups": len(d.Controller.PendingWrapUps())})
		return
	}
	c.JSON(status, gin.H{"state": s.State, "session": s})
}
