package live

// Speaker identifies who produced a piece of transcribed text.
type Speaker int

const (
	// SpeakerUser is transcribed microphone input.
	SpeakerUser Speaker = iota

	// SpeakerAgent is the text form of the agent's spoken output.
	SpeakerAgent

	// SpeakerSystem is orchestrator-generated text (status notices).
	SpeakerSystem
)

// String returns the human-readable name of the speaker.
func (s Speaker) String() string {
	switch s {
	case SpeakerUser:
		return "user"
	case SpeakerAgent:
		return "agent"
	case SpeakerSystem:
		return "system"
	default:
		return "unknown"
	}
}

// ToolCall is a structured command issued by the remote agent. Immutable
// once received.
type ToolCall struct {
	// ID correlates the call with its eventual ToolResult.
	ID string

	// Name is the tool being invoked.
	Name string

	// Args holds the decoded call arguments.
	Args map[string]any
}

// ToolResult is the host's answer to a ToolCall, correlated by ID.
type ToolResult struct {
	ID     string
	Name   string
	Result string
}

// ServerEvent is the closed union of events a live session delivers.
// Events must be handled strictly in arrival order; the session's Events
// channel delivers them one at a time and the consumer owns sequencing.
type ServerEvent interface {
	isServerEvent()
}

// AudioChunk carries decoded agent speech: little-endian signed 16-bit PCM
// at 24 kHz mono. Each chunk is consumed exactly once by the playback layer.
type AudioChunk struct {
	PCM []byte
}

// PartialTranscript carries one incremental text fragment for a speaker.
// Fragments accumulate until the turn boundary; they are never replacements.
type PartialTranscript struct {
	Speaker Speaker
	Text    string
}

// TurnComplete marks the normal end of a conversational turn.
type TurnComplete struct{}

// Interrupted signals user barge-in: queued agent speech must be discarded
// immediately.
type Interrupted struct{}

// ToolCallRequest asks the host to execute a tool and return its result
// through the session.
type ToolCallRequest struct {
	Call ToolCall
}

// SessionError reports a server-side error. The session is considered
// terminal after one of these.
type SessionError struct {
	Err error
}

func (AudioChunk) isServerEvent()        {}
func (PartialTranscript) isServerEvent() {}
func (TurnComplete) isServerEvent()      {}
func (Interrupted) isServerEvent()       {}
func (ToolCallRequest) isServerEvent()   {}
func (SessionError) isServerEvent()      {}
