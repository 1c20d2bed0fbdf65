package utils

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActiveCalls = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dialer_active_calls",
		Help: "Number of desks currently in a dialing, ringing or connected call",
	})

	CallTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialer_call_transitions_total",
		Help: "Call state transitions by target state and cause",
	}, []string{"to", "cause"})

	HeuristicVerdictsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialer_heuristic_verdicts_total",
		Help: "Verdicts produced by call progress heuristics",
	}, []string{"kind"})

	WrapUpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialer_wrapups_total",
		Help: "Wrap-ups recorded by outcome",
	}, []string{"outcome"})

	WrapUpPersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dialer_wrapup_persist_failures_total",
		Help: "Wrap-ups that could not be written to the durable store",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dialer_events_dropped_total",
		Help: "Outbound events dropped because a queue was full",
	}, []string{"sink"})
)

// live reports whether a call in state counts toward ActiveCalls.
func live(state string) bool {
	switch state {
	case "dialing", "ringing", "connected":
		return true
	}
	return false
}

// ObserveTransition records one call state change.
func ObserveTransition(from, to, cause string) {
	CallTransitionsTotal.WithLabelValues(to, cause).Inc()
	switch {
	case !live(from) && live(to):
		ActiveCalls.Inc()
	case live(from) && !live(to):
		ActiveCalls.Dec()
	}
}
