// Package workflow tracks each document's progress through the
// classification pipeline as an explicit state machine with an append-only
// transition history.
package workflow

// State is a document's position in the processing pipeline.
type State string

const (
	StateReceived     State = "received"
	StateProcessing   State = "processing"
	StateClassified   State = "classified"
	StateValidated    State = "validated"
	StateManualReview State = "manual_review"
	StateStored       State = "stored"
	StateComplete     State = "complete"
	StateError        State = "error"
	StateFailed       State = "failed"
)

// transitions is the legal edge set. Any (from, to) pair absent here is
// rejected by the machine. Error is entered from processing and classified
// when classification fails, and from validated when storing the
// classification record fails.
var transitions = map[State][]State{
	StateReceived:     {StateProcessing},
	StateProcessing:   {StateClassified, StateError},
	StateClassified:   {StateValidated, StateManualReview, StateError},
	StateValidated:    {StateStored, StateError},
	StateManualReview: {StateValidated},
	StateStored:       {StateComplete},
	StateError:        {StateProcessing, StateFailed},
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateReceived, StateProcessing, StateClassified, StateValidated,
		StateManualReview, StateStored, StateComplete, StateError, StateFailed:
		return true
	}
	return false
}

// Terminal reports whether no transitions leave s.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// CanTransition reports whether the edge from s to next is legal.
func (s State) CanTransition(next State) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}
