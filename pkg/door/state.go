package door

// State represents the lifecycle state of a Door.
type State int

const (
	// StateInitialized means the door is created but not running.
	StateInitialized State = iota

	// StateRunning means Run is executing the loop.
	StateRunning

	// StateStopping means Stop was called or the context ended.
	StateStopping

	// StateStopped means the loop has exited.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// IsRunning returns true while the loop runs.
func (s State) IsRunning() bool {
	return s == StateRunning
}

// CanStart returns true if Run can be called in this state.
func (s State) CanStart() bool {
	return s == StateInitialized
}

// CanStop returns true if Stop can be called in this state.
func (s State) CanStop() bool {
	return s == StateRunning
}
