// Package checkpoint keeps the current call of each desk outside the process
// so a restarted desk can pick its call back up.
package checkpoint

import (
	"context"
	"errors"

	"collections-dialer/internal/calls"
)

// ErrStale is returned when a save carries a version not newer than the stored one.
var ErrStale = errors.New("checkpoint: stale version")

// Store holds at most one live session per agent. Save only succeeds for a
// strictly higher Session.Version than the stored one, so concurrent
// asynchronous writes can never roll the checkpoint back.
//
// Next to the live session each agent has a set of ended calls still waiting
// for a wrap-up, keyed by session id. The set survives the live slot being
// overwritten by the next call.
type Store interface {
	Save(ctx context.Context, agentID string, s calls.Session) error
	Load(ctx context.Context, agentID string) (calls.Session, bool, error)

	SavePending(ctx context.Context, agentID string, s calls.Session) error
	DropPending(ctx context.Context, agentID string, id calls.SessionID) error
	// LoadPending returns the agent's pending wrap-ups in no particular order.
	LoadPending(ctx context.Context, agentID string) ([]calls.Session, error)
}
