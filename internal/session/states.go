package session

// State identifies the lifecycle phase of a voice session.
type State int

const (
	// StateIdle means no session is running and no resources are held.
	StateIdle State = iota

	// StateListening means the session is live and streaming microphone
	// audio while the agent is quiet.
	StateListening

	// StateProcessing means the agent is currently responding (audio or
	// text is arriving). Microphone audio keeps streaming so the agent can
	// be interrupted.
	StateProcessing
)

// String returns a human-readable state name for logs.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListening:
		return "listening"
	case StateProcessing:
		return "processing"
	default:
		return "unknown"
	}
}
