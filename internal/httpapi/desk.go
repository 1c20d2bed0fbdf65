package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/internal/history"
	"collections-dialer/pkg/logger"
)

// --- Wrap-ups ---

func (h Handlers) PendingWrapUps(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"pending": d.Controller.PendingWrapUps()})
}

type wrapUpRequest struct {
	SessionID    string     `json:"session_id"`
	Outcome      string     `json:"outcome"`
	Notes        string     `json:"notes"`
	CallbackDate *time.Time `json:"callback_date"`
	AccountRef   string     `json:"account_ref"`
}

// SubmitWrapUp records the disposition of an ended call. It answers 201 once
// the durable store confirmed the write and 202 with a warning otherwise; the
// local history entry exists in both cases.
func (h Handlers) SubmitWrapUp(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	var req wrapUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.SessionID == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "session_id required"})
		return
	}

	receipt, err := d.SubmitWrapUp(c.Request.Context(), dialer.WrapUpInput{
		SessionID:    calls.SessionID(req.SessionID),
		Outcome:      calls.Outcome(req.Outcome),
		Notes:        req.Notes,
		CallbackDate: req.CallbackDate,
		AccountRef:   req.AccountRef,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	wait := h.PersistWait
	if wait <= 0 {
		wait = DefaultPersistWait
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case err := <-receipt.Persisted:
		if err != nil {
			logger.FromGin(c).Warn("wrap-up saved locally only", "session_id", req.SessionID, "err", err)
			c.JSON(http.StatusAccepted, gin.H{"entry": receipt.Entry, "warning": "saved locally; the central record could not be updated"})
			return
		}
		c.JSON(http.StatusCreated, gin.H{"entry": receipt.Entry})
	case <-timer.C:
		c.JSON(http.StatusAccepted, gin.H{"entry": receipt.Entry, "warning": "saved locally; the central record is still being updated"})
	}
}

func (h Handlers) AbandonWrapUp(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	if err := d.AbandonWrapUp(c.Request.Context(), calls.SessionID(c.Param("session_id"))); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// FailedWrapUps lists wrap-ups kept on this desk whose central write failed.
func (h Handlers) FailedWrapUps(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"failed": d.Recorder.Failed()})
}

func (h Handlers) RetryWrapUps(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	n, err := d.RetryWrapUps(c.Request.Context())
	if err != nil {
		logger.FromGin(c).Warn("wrap-up retry incomplete", "err", err)
	}
	c.JSON(http.StatusOK, gin.H{"persisted": n, "remaining": len(d.Recorder.Failed())})
}

// --- History ---

func (h Handlers) History(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	q := history.Query{Outcome: calls.Outcome(c.Query("outcome"))}
	if q.Outcome != "" && !q.Outcome.Valid() {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": calls.ErrInvalidOutcome.Error()})
		return
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		q.Limit = n
	}
	var err error
	if q.From, err = parseTime(c.Query("from")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "from must be RFC3339"})
		return
	}
	if q.To, err = parseTime(c.Query("to")); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "to must be RFC3339"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": d.History.Query(q)})
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, v)
}

// --- Missed calls ---

func (h Handlers) Missed(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"missed": d.Missed.List(), "unread": d.Missed.UnreadCount()})
}

func (h Handlers) MarkMissedRead(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if id == "all" {
		n := d.Missed.MarkAllRead()
		c.JSON(http.StatusOK, gin.H{"marked": n})
		return
	}
	if err := d.Missed.MarkRead(id); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "missed call not found"})
			return
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": 1})
}

func (h Handlers) ClearMissed(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	n := d.Missed.Clear()
	if h.Audit != nil && n > 0 {
		if err := h.Audit.LogMissedCleared(c.Request.Context(), d.AgentID, n); err != nil {
			logger.FromGin(c).Warn("audit append failed", "err", err)
		}
	}
	c.JSON(http.StatusOK, gin.H{"cleared": n})
}

// --- Notifications ---

// Notifications returns the feed after the optional "after" id, oldest first.
func (h Handlers) Notifications(c *gin.Context) {
	d, ok := h.desk(c)
	if !ok {
		return
	}
	var after uint64
	if v := c.Query("after"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "after must be a notification id"})
			return
		}
		after = n
	}
	c.JSON(http.StatusOK, gin.H{"notifications": d.Feed.Since(after)})
}
