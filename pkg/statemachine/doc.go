// Package statemachine implements typed finite state machines.
//
// A Definition holds the transition table and is built once; Machine values
// are cheap and can start at any state, which suits entities whose state is
// loaded from storage.
//
//	type State string
//	type Event string
//
//	def := statemachine.MustDefine(
//	    statemachine.WithTransition[State, Event, *Order]("pending", "paid", "pay"),
//	    statemachine.WithTransition[State, Event, *Order]("paid", "refunded", "refund",
//	        statemachine.WithAction(persist),
//	    ),
//	)
//
//	m := def.New(order.State)
//	if err := m.Fire(ctx, "refund", order); err != nil {
//	    // ErrNoTransitionAvailable, ErrTransitionRejected or an action error
//	}
//
// Guards are evaluated in registration order and the first transition whose
// guards all pass wins. Actions run before the state changes; an action error
// leaves the machine where it was.
package statemachine
