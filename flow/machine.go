package flow

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrInvalidTransition is returned when a trigger is not allowed in the
	// current view.
	ErrInvalidTransition = errors.New("flow: invalid transition")
	// ErrBusy is returned when a submit arrives while another is in flight.
	ErrBusy = errors.New("flow: operation already in progress")
	// ErrValidation is returned when a form fails validation. The field
	// messages are available from the controller.
	ErrValidation = errors.New("flow: form has validation errors")
)

// Transition is one edge of a Machine.
type Transition[S comparable, T comparable] struct {
	From S
	On   T
	To   S
}

type edge[S comparable, T comparable] struct {
	from S
	on   T
}

// Machine is a finite state machine over view states S and triggers T.
type Machine[S comparable, T comparable] struct {
	mu      sync.Mutex
	initial S
	state   S
	edges   map[edge[S, T]]S
}

// NewMachine returns a machine in initial with the given edges.
func NewMachine[S comparable, T comparable](initial S, transitions ...Transition[S, T]) *Machine[S, T] {
	m := &Machine[S, T]{
		initial: initial,
		state:   initial,
		edges:   make(map[edge[S, T]]S, len(transitions)),
	}
	for _, tr := range transitions {
		m.edges[edge[S, T]{tr.From, tr.On}] = tr.To
	}
	return m
}

// State returns the current state.
func (m *Machine[S, T]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Can reports whether on is allowed from the current state.
func (m *Machine[S, T]) Can(on T) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.edges[edge[S, T]{m.state, on}]
	return ok
}

// Fire applies on and returns the new state.
func (m *Machine[S, T]) Fire(on T) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, ok := m.edges[edge[S, T]{m.state, on}]
	if !ok {
		return m.state, fmt.Errorf("%w: %v from %v", ErrInvalidTransition, on, m.state)
	}
	m.state = to
	return to, nil
}

// Reset returns the machine to its initial state.
func (m *Machine[S, T]) Reset() {
	m.mu.Lock()
	m.state = m.initial
	m.mu.Unlock()
}

// Restore forces the machine into s. Used to rebuild a controller from a
// snapshot carried between requests.
func (m *Machine[S, T]) Restore(s S) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// Gate admits one in-flight operation at a time.
type Gate struct {
	busy atomic.Bool
}

// Enter claims the gate. It returns false when the gate is already held.
func (g *Gate) Enter() bool {
	return g.busy.CompareAndSwap(false, true)
}

// Leave releases the gate.
func (g *Gate) Leave() {
	g.busy.Store(false)
}

// Busy reports whether an operation is in flight.
func (g *Gate) Busy() bool {
	return g.busy.Load()
}
