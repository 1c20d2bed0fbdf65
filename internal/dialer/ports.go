package dialer

import (
	"context"

	"collections-dialer/internal/calls"
)

// Launcher hands a normalized number to the softphone. A nil error only means
// the hand-off worked; nothing is known about the call itself.
type Launcher interface {
	Launch(ctx context.Context, number string) error
}

// CustomerLookup resolves display names. Failures are tolerated.
type CustomerLookup interface {
	ByID(ctx context.Context, id string) (calls.CustomerRef, error)
	ByPhone(ctx context.Context, number string) (calls.CustomerRef, error)
}

// LauncherFunc adapts a function to Launcher.
type LauncherFunc func(ctx context.Context, number string) error

func (f LauncherFunc) Launch(ctx context.Context, number string) error { return f(ctx, number) }
