package calls

type State string

const (
	StateIdle      State = "idle"
	StateDialing   State = "dialing"
	StateRinging   State = "ringing"
	StateConnected State = "connected"
	StateEnded     State = "ended"
	StateFailed    State = "failed"
	StateMissed    State = "missed"
)

func (s State) IsTerminal() bool {
	switch s {
	case StateEnded, StateFailed, StateMissed:
		return true
	default:
		return false
	}
}

// IsActive reports whether a session in state s blocks a new session.
func (s State) IsActive() bool {
	switch s {
	case StateDialing, StateRinging, StateConnected:
		return true
	default:
		return false
	}
}

var transitions = map[State][]State{
	StateIdle:      {StateDialing, StateRinging},
	StateDialing:   {StateConnected, StateEnded, StateFailed},
	StateRinging:   {StateConnected, StateEnded, StateMissed, StateFailed},
	StateConnected: {StateEnded, StateFailed},
}

// CanTransitionTo reports whether s -> next is a valid edge of the call state machine.
func (s State) CanTransitionTo(next State) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Outcome is the disposition of a finished call. The first group is chosen by
// the operator during wrap-up; the second group is assigned by the controller.
type Outcome string

const (
	OutcomePromiseToPay      Outcome = "promise_to_pay"
	OutcomePaymentMade       Outcome = "payment_made"
	OutcomeCallbackRequested Outcome = "callback_requested"
	OutcomeRefusedToPay      Outcome = "refused_to_pay"
	OutcomeDisputed          Outcome = "disputed"
	OutcomeWrongNumber       Outcome = "wrong_number"
	OutcomeLeftMessage       Outcome = "left_message"
	OutcomeNoContact         Outcome = "no_contact"
	OutcomeCallTransferred   Outcome = "call_transferred"

	OutcomePending   Outcome = "pending"
	OutcomeNoAnswer  Outcome = "no_answer"
	OutcomeRejected  Outcome = "rejected"
	OutcomeMissed    Outcome = "missed"
	OutcomeFailed    Outcome = "failed"
	OutcomeAbandoned Outcome = "abandoned"
)

var dispositions = map[Outcome]bool{
	OutcomePromiseToPay:      true,
	OutcomePaymentMade:       true,
	OutcomeCallbackRequested: true,
	OutcomeRefusedToPay:      true,
	OutcomeDisputed:          true,
	OutcomeWrongNumber:       true,
	OutcomeLeftMessage:       true,
	OutcomeNoContact:         true,
	OutcomeCallTransferred:   true,
}

// IsDisposition reports whether o may be submitted during wrap-up.
func (o Outcome) IsDisposition() bool { return dispositions[o] }

// Valid reports whether o is any known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePending, OutcomeNoAnswer, OutcomeRejected, OutcomeMissed, OutcomeFailed, OutcomeAbandoned:
		return true
	}
	return dispositions[o]
}

// RequiresCallback reports whether a wrap-up with o must carry a callback date.
func (o Outcome) RequiresCallback() bool { return o == OutcomeCallbackRequested }

// Dispositions lists the operator-selectable outcomes in display order.
func Dispositions() []Outcome {
	return []Outcome{
		OutcomePromiseToPay,
		OutcomePaymentMade,
		OutcomeCallbackRequested,
		OutcomeRefusedToPay,
		OutcomeDisputed,
		OutcomeWrongNumber,
		OutcomeLeftMessage,
		OutcomeNoContact,
		OutcomeCallTransferred,
	}
}
