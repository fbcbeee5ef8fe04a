package dialogue

import (
	"fmt"
	"time"
)

type State int

const (
	Start State = iota
	AwaitingInput
	OptionSelected
	Unrecognized
	Terminated
)

func (s State) String() string {
	switch s {
	case Start:
		return "start"
	case AwaitingInput:
		return "awaiting_input"
	case OptionSelected:
		return "option_selected"
	case Unrecognized:
		return "unrecognized"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Reason says why a session ended.
type Reason string

const (
	ReasonExit        Reason = "exit"
	ReasonMaxAttempts Reason = "max_attempts"
	ReasonCancelled   Reason = "cancelled"
	ReasonFatal       Reason = "fatal"
)

// Result summarizes a finished session.
type Result struct {
	State    State
	Reason   Reason
	Turns    int
	Selected []string
}

type EventKind string

const (
	EventTurn EventKind = "turn"
	EventEnd  EventKind = "end"
)

// Event is emitted once per listen turn and once when the session ends.
type Event struct {
	Kind       EventKind     `json:"kind"`
	Turn       int           `json:"turn"`
	State      string        `json:"state"`
	Transcript string        `json:"transcript,omitempty"`
	OptionID   string        `json:"option_id,omitempty"`
	Error      string        `json:"error,omitempty"`
	Reason     Reason        `json:"reason,omitempty"`
	Listen     time.Duration `json:"listen_ns,omitempty"`
	Time       time.Time     `json:"time"`
}

// Observer receives session events. Observe must not block for long; the
// dialogue calls it inline between turns.
type Observer interface {
	Observe(Event)
}

// Observers fans an event out to several observers.
type Observers []Observer

func (obs Observers) Observe(ev Event) {
	for _, o := range obs {
		if o != nil {
			o.Observe(ev)
		}
	}
}
