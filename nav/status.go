package nav

import "fmt"

// Status is the application-level navigation state.
type Status int

const (
	StatusIdle Status = iota
	StatusPreview
	StatusConfirm
	StatusNavigating
	StatusRerouting
	StatusArrived
	StatusError
)

var statusNames = [...]string{
	StatusIdle:       "idle",
	StatusPreview:    "preview",
	StatusConfirm:    "confirm",
	StatusNavigating: "navigating",
	StatusRerouting:  "rerouting",
	StatusArrived:    "arrived",
	StatusError:      "error",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("status(%d)", int(s))
	}
	return statusNames[s]
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Stopping is allowed from every state and is not listed.
var transitions = map[Status][]Status{
	StatusIdle:       {StatusPreview, StatusError},
	StatusPreview:    {StatusPreview, StatusConfirm, StatusError},
	StatusConfirm:    {StatusPreview, StatusNavigating, StatusError},
	StatusNavigating: {StatusRerouting, StatusArrived, StatusNavigating},
	StatusRerouting:  {StatusNavigating, StatusArrived},
	StatusArrived:    {StatusPreview, StatusNavigating},
	StatusError:      {StatusPreview, StatusError},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	if to == StatusIdle {
		return true
	}
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// StatusMachine tracks the current status and enforces the transition table.
// The zero value starts in StatusIdle.
type StatusMachine struct {
	current Status
}

func (m *StatusMachine) Current() Status {
	return m.current
}

// Transition moves to the given status. A transition to the current status
// reports changed == false.
func (m *StatusMachine) Transition(to Status) (changed bool, err error) {
	if !CanTransition(m.current, to) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, m.current, to)
	}
	if m.current == to {
		return false, nil
	}
	m.current = to
	return true, nil
}
