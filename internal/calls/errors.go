package calls

import "errors"

var (
	ErrSessionBusy            = errors.New("calls: a call is already in progress")
	ErrInvalidState           = errors.New("calls: operation not valid in current state")
	ErrMissingCallback        = errors.New("calls: callback date required for this outcome")
	ErrDialLaunchFailed       = errors.New("calls: softphone failed to launch")
	ErrPersistenceUnavailable = errors.New("calls: durable store unavailable")

	ErrInvalidNumber   = errors.New("calls: phone number has no digits")
	ErrInvalidOutcome  = errors.New("calls: unknown wrap-up outcome")
	ErrAlreadyRecorded = errors.New("calls: wrap-up already recorded for session")
	ErrUnknownSession  = errors.New("calls: unknown session")
)
