package telephony

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
)

func TestParseInboundCall(t *testing.T) {
	body := strings.NewReader("CallId=abc&From=anonymous&CallerName=Jane&Agent=agent-1")
	r := httptest.NewRequest(http.MethodPost, "/webhooks/softphone/incoming", body)
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	form, err := ParseInboundCall(r)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if form.CallID != "abc" || form.Agent != "agent-1" || form.CallerName != "Jane" {
		t.Fatalf("unexpected form: %+v", form)
	}
	if form.From != "" {
		t.Fatalf("expected withheld number to be empty, got %q", form.From)
	}
}

func newWebhookRouter(t *testing.T, token string) (*gin.Engine, *dialer.Registry) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := dialer.NewRegistry(dialer.RegistryConfig{
		Launcher: dialer.LauncherFunc(func(context.Context, string) error { return nil }),
		Clock:    clockwork.NewFakeClockAt(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)),
	})
	t.Cleanup(reg.Close)
	if _, err := reg.Desk(context.Background(), "agent-1"); err != nil {
		t.Fatalf("open desk: %v", err)
	}

	r := gin.New()
	r.POST("/webhooks/softphone/incoming", InboundWebhookHandler{Desks: reg, Token: token}.HandleInboundCall)
	return r, reg
}

func postInbound(r http.Handler, form, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/softphone/incoming", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if token != "" {
		req.Header.Set(headerWebhookToken, token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestInboundWebhook_RingsAgentDesk(t *testing.T) {
	r, reg := newWebhookRouter(t, "")

	w := postInbound(r, "From=0821234567&CallerName=Jane&Agent=agent-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if body["state"] != string(calls.StateRinging) || body["session_id"] == "" {
		t.Fatalf("unexpected body: %v", body)
	}

	d, ok := reg.Lookup("agent-1")
	if !ok {
		t.Fatalf("expected desk for agent-1")
	}
	s, ok := d.Controller.Current()
	if !ok || s.State != calls.StateRinging || s.CounterpartName() != "Jane" {
		t.Fatalf("unexpected session: %+v", s)
	}

	if w := postInbound(r, "From=0831234567&Agent=agent-1", ""); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", w.Code)
	}
}

func TestInboundWebhook_Validation(t *testing.T) {
	r, _ := newWebhookRouter(t, "s3cret")

	if w := postInbound(r, "From=0821234567&Agent=agent-1", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	if w := postInbound(r, "From=0821234567", "s3cret"); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without agent, got %d", w.Code)
	}
	if w := postInbound(r, "From=0821234567&Agent=agent-1", "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d", w.Code)
	}
}

func TestInboundWebhook_UnknownAgentIs404(t *testing.T) {
	r, reg := newWebhookRouter(t, "")

	if w := postInbound(r, "From=0821234567&Agent=agent-9", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an agent without a desk, got %d", w.Code)
	}
	if _, ok := reg.Lookup("agent-9"); ok {
		t.Fatalf("webhook must not create desks")
	}
	if n := len(reg.Desks()); n != 1 {
		t.Fatalf("expected only the opened desk, got %d", n)
	}
}
