package statemachine

import "fmt"

// Option configures a Definition.
type Option[S, E comparable, D any] func(*Definition[S, E, D]) error

// TransitionOption configures a single transition.
type TransitionOption[S, E comparable, D any] func(*Transition[S, E, D])

// WithTransition adds a single transition.
func WithTransition[S, E comparable, D any](from, to S, event E, opts ...TransitionOption[S, E, D]) Option[S, E, D] {
	return func(d *Definition[S, E, D]) error {
		t := Transition[S, E, D]{From: from, To: to, Event: event}
		for _, opt := range opts {
			opt(&t)
		}
		return d.add(t)
	}
}

// WithTransitions adds several transitions at once.
func WithTransitions[S, E comparable, D any](transitions ...Transition[S, E, D]) Option[S, E, D] {
	return func(d *Definition[S, E, D]) error {
		for i, t := range transitions {
			if err := d.add(t); err != nil {
				return fmt.Errorf("failed to add transition[%d] %v->%v on %v: %w", i, t.From, t.To, t.Event, err)
			}
		}
		return nil
	}
}

// WithGuard adds a guard to a transition. Nil guards are ignored.
func WithGuard[S, E comparable, D any](guard Guard[S, E, D]) TransitionOption[S, E, D] {
	return func(t *Transition[S, E, D]) {
		if guard != nil {
			t.Guards = append(t.Guards, guard)
		}
	}
}

// WithAction adds an action to a transition. Nil actions are ignored.
func WithAction[S, E comparable, D any](action Action[S, E, D]) TransitionOption[S, E, D] {
	return func(t *Transition[S, E, D]) {
		if action != nil {
			t.Actions = append(t.Actions, action)
		}
	}
}
