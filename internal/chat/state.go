package chat

// State is the lifecycle position of the pending question.
type State int

const (
	StateIdle State = iota
	StateComposing
	StateSubmitting
	StateRendering
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateComposing:
		return "composing"
	case StateSubmitting:
		return "submitting"
	case StateRendering:
		return "rendering"
	default:
		return "unknown"
	}
}

// Busy reports whether input is locked.
func (s State) Busy() bool {
	return s == StateSubmitting || s == StateRendering
}

// MarshalText lets State appear as a string in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Update tells observers that a message or the state changed.
// MessageID is empty for pure state changes.
type Update struct {
	MessageID string
	State     State
}
