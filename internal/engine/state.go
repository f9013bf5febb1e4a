package engine

import "fmt"

// State is the runtime's attachment state.
type State int

const (
	Disconnected State = iota
	Connecting
	Initializing
	Running
	Exited
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "Disconnected"
	case Connecting:
		return "Connecting"
	case Initializing:
		return "Initializing"
	case Running:
		return "Running"
	case Exited:
		return "Exited"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ParseState is the inverse of State.String.
func ParseState(s string) (State, error) {
	for st := Disconnected; st <= Exited; st++ {
		if st.String() == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown runtime state %q", s)
}
