package harness

import "fmt"

// State is the position of one input in the run.
type State int

const (
	StatePending State = iota
	StateChainBuilt
	StateVariantsRun
	StateVerified
	StatePassed
	StateFailed
)

var stateNames = [...]string{
	StatePending:     "pending",
	StateChainBuilt:  "chain_built",
	StateVariantsRun: "variants_run",
	StateVerified:    "verified",
	StatePassed:      "passed",
	StateFailed:      "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for i, name := range stateNames {
		if name == string(text) {
			*s = State(i)
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePassed || s == StateFailed
}

// next lists the successors of each non-terminal state, excluding Failed,
// which every non-terminal state may reach.
var next = map[State][]State{
	StatePending:     {StateChainBuilt},
	StateChainBuilt:  {StateVariantsRun, StatePassed},
	StateVariantsRun: {StateVerified},
	StateVerified:    {StatePassed},
}

// CanTransition reports whether from -> to is a legal move.
func CanTransition(from, to State) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	for _, s := range next[from] {
		if s == to {
			return true
		}
	}
	return false
}
