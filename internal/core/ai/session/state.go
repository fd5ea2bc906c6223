package session

import "fmt"

// State is a session's position in the pipeline.
// States only move forward; Completed and Failed are terminal.
type State int

const (
	Idle State = iota
	Uploaded
	Converting
	Transcribing
	Completed
	Failed
)

var stateNames = [...]string{
	Idle:         "idle",
	Uploaded:     "uploaded",
	Converting:   "converting",
	Transcribing: "transcribing",
	Completed:    "completed",
	Failed:       "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == Completed || s == Failed
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
	return fmt.Errorf("unknown session state: %q", text)
}
