// Package statemachine is a small transition table guarded by a mutex.
// Stream subscriptions use it to leave their armed state exactly once.
package statemachine

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNoTransition is returned by Trigger when the current state has no
// transition for the event. It is wrapped with the state and event.
var ErrNoTransition = errors.New("statemachine: no transition")

// State is a node of the machine.
type State string

// Event moves the machine along a transition.
type Event string

// Transition moves the machine from From to To when Event is triggered.
type Transition struct {
	From  State
	To    State
	Event Event
}

// Machine holds a current state and its outgoing transitions.
//
// Lookup and move happen under one lock, so when several goroutines trigger
// events out of the same state only the first succeeds; the others see the
// state it left behind.
type Machine struct {
	mu          sync.RWMutex
	current     State
	transitions map[State]map[Event]State
}

// NewMachine creates a machine in state initial with no transitions.
func NewMachine(initial State) *Machine {
	return &Machine{
		current:     initial,
		transitions: make(map[State]map[Event]State),
	}
}

// AddTransition registers t. Each state accepts an event at most once.
func (m *Machine) AddTransition(t Transition) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := m.transitions[t.From]
	if out == nil {
		out = make(map[Event]State)
		m.transitions[t.From] = out
	}
	if _, exists := out[t.Event]; exists {
		return fmt.Errorf("statemachine: %s already handles %s", t.From, t.Event)
	}
	out[t.Event] = t.To
	return nil
}

// Trigger moves along the transition for event out of the current state.
func (m *Machine) Trigger(event Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	to, ok := m.transitions[m.current][event]
	if !ok {
		return fmt.Errorf("%w from %s on %s", ErrNoTransition, m.current, event)
	}
	m.current = to
	return nil
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}
