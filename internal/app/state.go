package app

import "log"

// State is the acquisition loop's position for the current frame.
type State int

const (
	StateWaitingFrame State = iota
	StateDetecting
	StateAccepted
	StateRejected
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaitingFrame:
		return "waiting_frame"
	case StateDetecting:
		return "detecting"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateDone:
		return "done"
	}
	return "unknown"
}

// validTransitions lists the states reachable from each state.
var validTransitions = map[State][]State{
	StateWaitingFrame: {StateDetecting, StateDone},
	StateDetecting:    {StateAccepted, StateRejected, StateDone},
	StateAccepted:     {StateWaitingFrame, StateDone},
	StateRejected:     {StateWaitingFrame, StateDone},
}

// canTransition reports whether from -> to is an edge of the loop.
func canTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// transition moves the session to next. Illegal edges are logged and ignored.
func (s *Session) transition(next State) {
	if s.state == next {
		return
	}
	if !canTransition(s.state, next) {
		log.Printf("ignoring invalid state change %s -> %s", s.state, next)
		return
	}

	s.debugf("state %s -> %s", s.state, next)
	s.state = next
	s.notify("state", next.String())
}
