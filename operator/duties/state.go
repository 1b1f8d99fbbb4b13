package duties

// State is the stage a duty run is in.
type State uint8

const (
	StateScheduled State = iota
	StateDeciding
	StateRecording
	StateSigning
	StateBroadcasting
	StateDone
	StateAborted
)

var stateNames = map[State]string{
	StateScheduled:    "scheduled",
	StateDeciding:     "deciding",
	StateRecording:    "recording",
	StateSigning:      "signing",
	StateBroadcasting: "broadcasting",
	StateDone:         "done",
	StateAborted:      "aborted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether the run is over.
func (s State) Terminal() bool {
	return s == StateDone || s == StateAborted
}
