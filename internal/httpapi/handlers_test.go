package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"collections-dialer/internal/audit"
	"collections-dialer/internal/auth"
	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/internal/heuristics"
	"collections-dialer/internal/history"
	"collections-dialer/internal/rbac"
	"collections-dialer/internal/reporting"
	"collections-dialer/internal/wrapup"
)

type harness struct {
	router *gin.Engine
	desks  *dialer.Registry
	clock  *clockwork.FakeClock
	store  *wrapup.MemoryStore
	audit  *audit.MemoryRepo
	launch error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := &harness{
		clock: clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
		store: wrapup.NewMemoryStore(),
		audit: audit.NewMemoryRepo(),
	}
	h.desks = dialer.NewRegistry(dialer.RegistryConfig{
		Launcher:         dialer.LauncherFunc(func(context.Context, string) error { return h.launch }),
		WrapUpStore:      h.store,
		Clock:            h.clock,
		HeuristicOptions: []heuristics.Option{heuristics.WithRand(func(int64) int64 { return 0 })},
		WrapUp: wrapup.Config{
			Timeout: 50 * time.Millisecond,
			Retry:   wrapup.RetryPolicy{MaxAttempts: 1},
		},
	})
	t.Cleanup(h.desks.Close)

	handlers := Handlers{
		Desks:       h.desks,
		Reports:     reporting.NewService(reporting.NewDeskRepo(h.desks)),
		Audit:       audit.NewService(h.audit),
		PersistWait: time.Second,
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		agent := c.GetHeader("X-Test-Agent")
		role := c.GetHeader("X-Test-Role")
		if role == "" {
			role = rbac.RoleAgent
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), agent, role))
		c.Next()
	})
	Register(r.Group("/v1"), handlers)
	h.router = r
	return h
}

// advance moves the clock and lets every desk deliver the verdicts it made due.
func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
	for _, desk := range h.desks.Desks() {
		desk.Settle()
	}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Test-Agent", "agent-1")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), out); err != nil {
		t.Fatalf("bad json %q: %v", w.Body.String(), err)
	}
}

type currentBody struct {
	State   calls.State   `json:"state"`
	Session calls.Session `json:"session"`
}

func TestCalls_OutgoingLifecycle(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "082 123 4567", "customer_name": "T. Mokoena"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}
	var cur currentBody
	decode(t, w, &cur)
	if cur.State != calls.StateDialing || cur.Session.PhoneNumber != "0821234567" {
		t.Fatalf("unexpected session: %+v", cur)
	}

	if w := h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "0831234567"}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", w.Code)
	}

	h.advance(5 * time.Second)
	w = h.do(t, http.MethodGet, "/v1/calls/current", nil)
	decode(t, w, &cur)
	if cur.State != calls.StateConnected {
		t.Fatalf("expected answer window to connect, got %s", cur.State)
	}

	if w := h.do(t, http.MethodPost, "/v1/calls/mute", gin.H{"on": true}); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/v1/calls/speaker", gin.H{}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing toggle, got %d", w.Code)
	}

	h.advance(40 * time.Second)
	if w := h.do(t, http.MethodPost, "/v1/calls/ended", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var pending struct {
		Pending []calls.Session `json:"pending"`
	}
	decode(t, h.do(t, http.MethodGet, "/v1/calls/wrapups/pending", nil), &pending)
	if len(pending.Pending) != 1 {
		t.Fatalf("expected one pending wrap-up, got %d", len(pending.Pending))
	}
	id := pending.Pending[0].ID

	w = h.do(t, http.MethodPost, "/v1/calls/wrapups", gin.H{"session_id": id, "outcome": "callback_requested"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing callback, got %d", w.Code)
	}

	w = h.do(t, http.MethodPost, "/v1/calls/wrapups", gin.H{"session_id": id, "outcome": "promise_to_pay", "notes": "R500 Friday"})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d %s", w.Code, w.Body.String())
	}

	var hist struct {
		Entries []history.Entry `json:"entries"`
	}
	decode(t, h.do(t, http.MethodGet, "/v1/history?outcome=promise_to_pay", nil), &hist)
	if len(hist.Entries) != 1 || hist.Entries[0].Duration != 40*time.Second {
		t.Fatalf("unexpected history: %+v", hist.Entries)
	}
	if w := h.do(t, http.MethodGet, "/v1/history?outcome=bogus", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bogus outcome, got %d", w.Code)
	}

	var sum reporting.Summary
	decode(t, h.do(t, http.MethodGet, "/v1/reports/summary?from=2026-03-02T00:00:00Z&to=2026-03-03T00:00:00Z", nil), &sum)
	if sum.TotalCalls != 1 || sum.ConnectedCalls != 1 || sum.TotalTalkSeconds != 40 {
		t.Fatalf("unexpected summary: %+v", sum)
	}
}

func TestCalls_LaunchFailureIs502(t *testing.T) {
	h := newHarness(t)
	h.launch = errors.New("no softphone")

	w := h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "0821234567"})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", w.Code)
	}
	var body map[string]any
	decode(t, w, &body)
	if body["state"] != string(calls.StateFailed) || body["session_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}
	var notes struct {
		Notifications []struct {
			Level string `json:"level"`
		} `json:"notifications"`
	}
	decode(t, h.do(t, http.MethodGet, "/v1/notifications", nil), &notes)
	if len(notes.Notifications) == 0 || notes.Notifications[len(notes.Notifications)-1].Level != "error" {
		t.Fatalf("expected error notification, got %+v", notes)
	}
}

func TestCalls_InvalidNumberAndState(t *testing.T) {
	h := newHarness(t)
	if w := h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "n/a"}); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/v1/calls/accept", nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/v1/calls/wrapups/nope/abandon", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestWrapUp_PersistFailureIs202(t *testing.T) {
	h := newHarness(t)
	h.store.FailWith(context.DeadlineExceeded, -1)

	h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "0821234567"})
	h.do(t, http.MethodPost, "/v1/calls/answered", nil)
	h.advance(45 * time.Second)
	h.do(t, http.MethodPost, "/v1/calls/ended", nil)

	d, _ := h.desks.Lookup("agent-1")
	id := d.Controller.PendingWrapUps()[0].ID

	w := h.do(t, http.MethodPost, "/v1/calls/wrapups", gin.H{"session_id": id, "outcome": "payment_made"})
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Warning string        `json:"warning"`
		Entry   history.Entry `json:"entry"`
	}
	decode(t, w, &body)
	if body.Warning == "" || body.Entry.Outcome != calls.OutcomePaymentMade {
		t.Fatalf("unexpected body: %+v", body)
	}
	d.Recorder.Wait()

	var failed struct {
		Failed []wrapup.Record `json:"failed"`
	}
	decode(t, h.do(t, http.MethodGet, "/v1/calls/wrapups/failed", nil), &failed)
	if len(failed.Failed) != 1 || failed.Failed[0].ID != string(id) {
		t.Fatalf("expected the wrap-up queued for retry, got %+v", failed)
	}

	h.store.FailWith(nil, 0)
	var retried struct {
		Persisted int `json:"persisted"`
		Remaining int `json:"remaining"`
	}
	w = h.do(t, http.MethodPost, "/v1/calls/wrapups/retry", nil)
	decode(t, w, &retried)
	if w.Code != http.StatusOK || retried.Persisted != 1 || retried.Remaining != 0 {
		t.Fatalf("expected queued wrap-up persisted, got %d %+v", w.Code, retried)
	}
	if recs := h.store.Records(); len(recs) != 1 || recs[0].Outcome != calls.OutcomePaymentMade {
		t.Fatalf("expected durable record after retry, got %+v", recs)
	}
}

func TestMissed_ListReadClear(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/v1/calls/incoming", gin.H{"number": "0821234567", "name": "Jane"})
	h.do(t, http.MethodPost, "/v1/calls/ended", nil)

	var missed struct {
		Missed []history.MissedCall `json:"missed"`
		Unread int                  `json:"unread"`
	}
	decode(t, h.do(t, http.MethodGet, "/v1/missed", nil), &missed)
	if len(missed.Missed) != 1 || missed.Unread != 1 {
		t.Fatalf("unexpected missed: %+v", missed)
	}

	if w := h.do(t, http.MethodPost, "/v1/missed/"+missed.Missed[0].ID+"/read", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := h.do(t, http.MethodPost, "/v1/missed/unknown/read", nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if w := h.do(t, http.MethodDelete, "/v1/missed", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	decode(t, h.do(t, http.MethodGet, "/v1/missed", nil), &missed)
	if len(missed.Missed) != 0 {
		t.Fatalf("expected cleared queue")
	}
	if n := len(h.audit.Events()); n != 1 {
		t.Fatalf("expected one audit event, got %d", n)
	}
}

func TestForeground_EndsConnectedCall(t *testing.T) {
	h := newHarness(t)
	h.do(t, http.MethodPost, "/v1/calls/outgoing", gin.H{"number": "0821234567"})
	h.do(t, http.MethodPost, "/v1/calls/answered", nil)
	h.advance(2 * time.Minute)

	w := h.do(t, http.MethodPost, "/v1/calls/foreground", nil)
	var body map[string]any
	decode(t, w, &body)
	if body["state"] != string(calls.StateIdle) {
		t.Fatalf("expected call ended by foreground return, got %v", body)
	}
}

func TestSummary_OtherAgentNeedsSupervisor(t *testing.T) {
	h := newHarness(t)
	if w := h.do(t, http.MethodGet, "/v1/reports/summary?agent_id=agent-2", nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/v1/reports/summary?agent_id=agent-2", nil, "X-Test-Role", rbac.RoleSupervisor); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/v1/reports/summary?from=yesterday", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}
