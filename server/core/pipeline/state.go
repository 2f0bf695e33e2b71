package pipeline

import "github.com/yeti47/framesight/server/core/sessions"

// State is the lifecycle position of one pipeline run
type State string

const (
	StateIdle        State = "idle"
	StateAllocating  State = "allocating"
	StateExtracting  State = "extracting"
	StateClassifying State = "classifying"
	StateResponding  State = "responding"
	StateCleaningUp  State = "cleaning_up"
	StateDone        State = sessions.StateDone
	StateFailed      State = sessions.StateFailed
)

// allowedTransitions lists the successors of every non-terminal state.
// Failed is reachable from all of them and is not repeated here.
var allowedTransitions = map[State][]State{
	StateIdle:        {StateAllocating, StateClassifying, StateCleaningUp},
	StateAllocating:  {StateExtracting, StateCleaningUp},
	StateExtracting:  {StateClassifying, StateResponding, StateCleaningUp},
	StateClassifying: {StateResponding, StateCleaningUp},
	StateResponding:  {StateCleaningUp},
	StateCleaningUp:  {StateDone},
}

func (s State) IsTerminal() bool {
	return s == StateDone || s == StateFailed
}

// CanTransition reports whether a run in state s may move to next
func (s State) CanTransition(next State) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
