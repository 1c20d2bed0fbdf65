package customers

import (
	"context"
	"sync"

	"collections-dialer/internal/calls"
	"collections-dialer/internal/phone"
)

// MemoryDirectory keys numbers by their normalized form under the desk's
// numbering plan, so it matches what the controller looks up.
type MemoryDirectory struct {
	norm phone.Normalizer

	mu      sync.RWMutex
	byID    map[string]calls.CustomerRef
	byPhone map[string]string
	err     error
}

// NewMemoryDirectory returns an empty directory. A zero Normalizer means the
// default numbering plan.
func NewMemoryDirectory(n phone.Normalizer) *MemoryDirectory {
	if n.CountryCode == "" {
		n = phone.NewNormalizer(n.CountryCode, n.NationalNumberLen)
	}
	return &MemoryDirectory{
		norm:    n,
		byID:    make(map[string]calls.CustomerRef),
		byPhone: make(map[string]string),
	}
}

func (d *MemoryDirectory) Put(ref calls.CustomerRef, numbers ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.byID[ref.ID] = ref
	for _, n := range numbers {
		d.byPhone[d.norm.Normalize(n)] = ref.ID
	}
}

// SetError makes every lookup fail with err. nil clears it.
func (d *MemoryDirectory) SetError(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *MemoryDirectory) ByID(_ context.Context, id string) (calls.CustomerRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return calls.CustomerRef{}, d.err
	}
	ref, ok := d.byID[id]
	if !ok {
		return calls.CustomerRef{}, ErrNotFound
	}
	return ref, nil
}

func (d *MemoryDirectory) ByPhone(_ context.Context, number string) (calls.CustomerRef, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.err != nil {
		return calls.CustomerRef{}, d.err
	}
	id, ok := d.byPhone[d.norm.Normalize(number)]
	if !ok {
		return calls.CustomerRef{}, ErrNotFound
	}
	return d.byID[id], nil
}
