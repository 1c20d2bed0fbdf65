package utils

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveTransition_TracksActiveCalls(t *testing.T) {
	before := testutil.ToFloat64(ActiveCalls)

	ObserveTransition("idle", "dialing", "operator")
	ObserveTransition("dialing", "connected", "heuristic:answer_window")
	if got := testutil.ToFloat64(ActiveCalls) - before; got != 1 {
		t.Fatalf("expected one active call, got %v", got)
	}
	ObserveTransition("connected", "ended", "operator")
	if got := testutil.ToFloat64(ActiveCalls) - before; got != 0 {
		t.Fatalf("expected no active calls, got %v", got)
	}
	if n := testutil.ToFloat64(CallTransitionsTotal.WithLabelValues("connected", "heuristic:answer_window")); n < 1 {
		t.Fatalf("expected transition counted")
	}
}
