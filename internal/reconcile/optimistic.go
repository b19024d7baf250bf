package reconcile

import (
	"context"
	"sync"

	"github.com/askline-dev/askline/shared/errors"
)

// Coordinator applies a speculative local state change immediately, issues
// the remote mutation, and rolls the display back if the mutation fails —
// unless an authoritative snapshot already superseded the speculation, in
// which case the rollback is a no-op.
//
// T is the view's full display state (e.g. the rendered question list);
// each snapshot and each speculative patch replaces it wholesale.
type Coordinator[T any] struct {
	mu      sync.Mutex
	state   T
	seq     uint64 // bumped on every display change
	pending map[string]struct{}
}

func NewCoordinator[T any](initial T) *Coordinator[T] {
	return &Coordinator[T]{
		state:   initial,
		pending: make(map[string]struct{}),
	}
}

// State returns the currently displayed state.
func (c *Coordinator[T]) State() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetAuthoritative installs a snapshot from the subscription manager. It
// is the source of truth and supersedes any in-flight speculation.
func (c *Coordinator[T]) SetAuthoritative(state T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.seq++
}

// Pending reports whether a mutation on the entity is still settling.
// The UI disables the triggering control while this holds.
func (c *Coordinator[T]) Pending(entityID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[entityID]
	return ok
}

// Apply runs one optimistic mutation keyed by entity id:
//
//  1. capture the displayed state S0
//  2. display patch(S0) immediately
//  3. issue the remote mutation
//  4. on success keep the speculation (the next authoritative snapshot
//     supersedes it); on failure restore S0 exactly — but only if the
//     speculation is still what is displayed.
//
// A second mutation on the same entity while one is settling is rejected
// with errors.ErrMutationPending; mutations are not cancellable once
// issued.
func (c *Coordinator[T]) Apply(ctx context.Context, entityID string, patch func(T) T, remote func(context.Context) error) error {
	c.mu.Lock()
	if _, busy := c.pending[entityID]; busy {
		c.mu.Unlock()
		return errors.ErrMutationPending
	}
	c.pending[entityID] = struct{}{}

	before := c.state
	c.state = patch(before)
	c.seq++
	speculatedAt := c.seq
	c.mu.Unlock()

	err := remote(ctx)

	c.mu.Lock()
	delete(c.pending, entityID)
	if err != nil && c.seq == speculatedAt {
		c.state = before
		c.seq++
		optimisticRollbacks.Inc()
	}
	c.mu.Unlock()
	return err
}
