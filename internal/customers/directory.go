// Package customers resolves debtor records for display on the desk.
// It is read-only; record maintenance lives in another service.
package customers

import (
	"context"
	"errors"

	"collections-dialer/internal/calls"
)

var ErrNotFound = errors.New("customers: not found")

type Directory interface {
	ByID(ctx context.Context, id string) (calls.CustomerRef, error)
	// ByPhone matches on the normalized number.
	ByPhone(ctx context.Context, number string) (calls.CustomerRef, error)
}
