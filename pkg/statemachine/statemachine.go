package statemachine

import (
	"context"
	"fmt"
	"sync"
)

// Action executes side effects during a transition. Returning an error
// prevents the state change.
type Action[S, E comparable, D any] func(ctx context.Context, from, to S, event E, data D) error

// Guard decides at runtime whether a transition may proceed.
type Guard[S, E comparable, D any] func(ctx context.Context, from S, event E, data D) bool

// Transition is a state change triggered by an event.
type Transition[S, E comparable, D any] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E, D]  // All must pass
	Actions []Action[S, E, D] // Executed in order before the state changes
}

// Definition is an immutable transition table. One Definition is shared by
// every Machine built from it, so machines for persisted entities can be
// restored at any state.
type Definition[S, E comparable, D any] struct {
	transitions map[S]map[E][]Transition[S, E, D]
}

// Define builds a Definition from options.
func Define[S, E comparable, D any](opts ...Option[S, E, D]) (*Definition[S, E, D], error) {
	d := &Definition[S, E, D]{transitions: make(map[S]map[E][]Transition[S, E, D])}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// MustDefine is like Define but panics on error.
func MustDefine[S, E comparable, D any](opts ...Option[S, E, D]) *Definition[S, E, D] {
	d, err := Define(opts...)
	if err != nil {
		panic(fmt.Sprintf("failed to define state machine: %v", err))
	}
	return d
}

func (d *Definition[S, E, D]) add(t Transition[S, E, D]) error {
	var zeroS S
	var zeroE E
	if t.From == zeroS || t.To == zeroS || t.Event == zeroE {
		return ErrInvalidTransition
	}
	if _, ok := d.transitions[t.From]; !ok {
		d.transitions[t.From] = make(map[E][]Transition[S, E, D])
	}
	// several transitions per from/event allow guard-based branching
	d.transitions[t.From][t.Event] = append(d.transitions[t.From][t.Event], t)
	return nil
}

// Events lists the events accepted in state s.
func (d *Definition[S, E, D]) Events(s S) []E {
	events := make([]E, 0, len(d.transitions[s]))
	for e := range d.transitions[s] {
		events = append(events, e)
	}
	return events
}

// IsTerminal reports whether no transition leaves s.
func (d *Definition[S, E, D]) IsTerminal(s S) bool {
	return len(d.transitions[s]) == 0
}

// New returns a machine positioned at state.
func (d *Definition[S, E, D]) New(state S) *Machine[S, E, D] {
	return &Machine[S, E, D]{def: d, current: state}
}

// Machine is a thread-safe instance of a Definition.
type Machine[S, E comparable, D any] struct {
	def     *Definition[S, E, D]
	mu      sync.Mutex
	current S
}

func (m *Machine[S, E, D]) Current() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Fire applies the first transition for event whose guards pass, running its
// actions before the state changes.
func (m *Machine[S, E, D]) Fire(ctx context.Context, event E, data D) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, err := m.find(ctx, event, data)
	if err != nil {
		return err
	}

	for _, action := range t.Actions {
		if err := action(ctx, m.current, t.To, event, data); err != nil {
			return fmt.Errorf("action failed: %w", err)
		}
	}

	m.current = t.To
	return nil
}

// CanFire reports whether Fire would find a transition.
func (m *Machine[S, E, D]) CanFire(ctx context.Context, event E, data D) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, err := m.find(ctx, event, data)
	return err == nil
}

func (m *Machine[S, E, D]) find(ctx context.Context, event E, data D) (*Transition[S, E, D], error) {
	candidates := m.def.transitions[m.current][event]
	if len(candidates) == 0 {
		return nil, &ErrNoTransitionAvailable{State: fmt.Sprint(m.current), Event: fmt.Sprint(event)}
	}

	for i, t := range candidates {
		if guardsPass(ctx, t, m.current, event, data) {
			return &candidates[i], nil
		}
	}
	return nil, &ErrTransitionRejected{State: fmt.Sprint(m.current), Event: fmt.Sprint(event)}
}

func guardsPass[S, E comparable, D any](ctx context.Context, t Transition[S, E, D], from S, event E, data D) bool {
	for _, g := range t.Guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
