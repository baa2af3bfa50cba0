// internal/fsm/fsm.go
//
// A tiny transition-table state machine shared by the mini-games.
// Each game declares its states, events and the allowed (state, event) → state
// edges once; Fire rejects anything outside the table.

package fsm

import (
	"fmt"
)

// Table maps a state and an event to the next state.
type Table[S comparable, E comparable] map[S]map[E]S

// Machine holds the current state of one game instance.
type Machine[S comparable, E comparable] struct {
	table Table[S, E]
	state S
}

// TransitionError is returned (wrapped) by Fire for edges missing from the table.
type TransitionError struct {
	From  any
	Event any
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("fsm: no transition from %v on %v", e.From, e.Event)
}

// New returns a machine in state initial.
func New[S comparable, E comparable](table Table[S, E], initial S) *Machine[S, E] {
	return &Machine[S, E]{table: table, state: initial}
}

// State returns the current state.
func (m *Machine[S, E]) State() S { return m.state }

// Can reports whether event is allowed from the current state.
func (m *Machine[S, E]) Can(event E) bool {
	_, ok := m.table[m.state][event]
	return ok
}

// Fire applies event and returns the new state.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	next, ok := m.table[m.state][event]
	if !ok {
		return m.state, &TransitionError{From: m.state, Event: event}
	}
	m.state = next
	return next, nil
}
