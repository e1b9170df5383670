// Package barrier implements the collect-from-all synchronization point used
// by the vault readiness check and the global sub-phases.
package barrier

import (
	"errors"
	"fmt"
)

// ErrAlreadySubmitted is returned when a participant submits twice.
var ErrAlreadySubmitted = errors.New("already submitted")

// Barrier collects one value per participant. Completion is always judged
// against the participant set passed to Complete, so a participant leaving
// never leaves a stale expected count behind.
type Barrier[T any] struct {
	values map[string]T
	order  []string
}

// New returns an empty barrier.
func New[T any]() *Barrier[T] {
	return &Barrier[T]{values: make(map[string]T)}
}

// Submit records v for id. A second submission from the same id is rejected.
func (b *Barrier[T]) Submit(id string, v T) error {
	if _, ok := b.values[id]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadySubmitted, id)
	}
	b.values[id] = v
	b.order = append(b.order, id)
	return nil
}

// Has reports whether id has submitted.
func (b *Barrier[T]) Has(id string) bool {
	_, ok := b.values[id]
	return ok
}

// Value returns the submission of id.
func (b *Barrier[T]) Value(id string) (T, bool) {
	v, ok := b.values[id]
	return v, ok
}

// Withdraw removes and returns the submission of id.
func (b *Barrier[T]) Withdraw(id string) (T, bool) {
	v, ok := b.values[id]
	if !ok {
		return v, false
	}
	delete(b.values, id)
	for i, s := range b.order {
		if s == id {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
	return v, true
}

// Complete reports whether every id in participants has submitted. An empty
// participant set never completes.
func (b *Barrier[T]) Complete(participants []string) bool {
	if len(participants) == 0 {
		return false
	}
	for _, id := range participants {
		if _, ok := b.values[id]; !ok {
			return false
		}
	}
	return true
}

// Submitted returns the ids that have submitted, in submission order.
func (b *Barrier[T]) Submitted() []string {
	return append([]string(nil), b.order...)
}

// Len returns the number of submissions.
func (b *Barrier[T]) Len() int {
	return len(b.order)
}

// Reset drops every submission.
func (b *Barrier[T]) Reset() {
	b.values = make(map[string]T)
	b.order = nil
}
