package main

import (
	"collections-dialer/internal/calls"
	"collections-dialer/internal/dialer"
	"collections-dialer/pkg/utils"
)

// observeMetrics feeds controller events into the prometheus collectors.
func observeMetrics(ev dialer.Event) {
	switch ev.Kind {
	case dialer.EventTransition:
		utils.ObserveTransition(string(ev.From), string(ev.To), ev.Cause)
	case dialer.EventRecovered:
		utils.ObserveTransition(string(calls.StateIdle), string(ev.To), ev.Cause)
	case dialer.EventWrapUpCompleted:
		utils.WrapUpsTotal.WithLabelValues(string(ev.Session.Outcome)).Inc()
	case dialer.EventWrapUpAbandoned:
		utils.WrapUpsTotal.WithLabelValues(string(calls.OutcomeAbandoned)).Inc()
	}
}
