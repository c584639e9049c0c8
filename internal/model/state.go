package model

// State identifies which queue directory an entry currently occupies.
// Directory membership is the entry's state; transitions are renames.
type State string

const (
	StateInbox    State = "inbox"
	StateProgress State = "progress"
	StateFinished State = "finished"
	StateFailed   State = "failed"
)

// States lists all states in lifecycle order.
func States() []State {
	return []State{StateInbox, StateProgress, StateFinished, StateFailed}
}

// Terminal reports whether no further transition is defined from s.
func (s State) Terminal() bool {
	return s == StateFinished || s == StateFailed
}

// Outcome is the terminal resolution of a claimed entry.
type Outcome string

const (
	OutcomeFinished Outcome = "finished"
	OutcomeFailed   Outcome = "failed"
)

// State returns the queue state an outcome resolves to.
func (o Outcome) State() State {
	if o == OutcomeFailed {
		return StateFailed
	}
	return StateFinished
}
