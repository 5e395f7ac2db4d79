package services

// State is the controller lifecycle position.
type State int

const (
	StateIdle State = iota
	StatePreparing
	StateArmedIdle
	StateDetecting
	StateFetching
	StatePublishing
	StateCoolingDown
	StateCaptureFailed
	StateModelFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePreparing:
		return "preparing"
	case StateArmedIdle:
		return "armed"
	case StateDetecting:
		return "detecting"
	case StateFetching:
		return "fetching"
	case StatePublishing:
		return "publishing"
	case StateCoolingDown:
		return "cooling_down"
	case StateCaptureFailed:
		return "capture_failed"
	case StateModelFailed:
		return "model_failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// InCycle reports whether a detection cycle owns the controller.
func (s State) InCycle() bool {
	return s >= StateDetecting && s <= StateCoolingDown
}
