// Package live defines the bidirectional session abstraction over a remote
// conversational voice agent.
//
// A Session is a stateful, full-duplex channel: encoded microphone frames go
// out, and a single ordered stream of [ServerEvent] values comes back —
// synthesised audio, incremental transcripts, turn boundaries, and tool-call
// requests, multiplexed over one connection. Concrete backends live in
// subpackages (e.g. live/gemini).
//
// All implementations must be safe for concurrent use.
package live

import (
	"context"

	"github.com/voxdesk/voxdesk/pkg/audio"
)

// ToolDeclaration describes one callable tool offered to the agent at
// session setup.
type ToolDeclaration struct {
	// Name is the identifier the agent uses to invoke the tool.
	Name string

	// Description tells the agent when the tool should be used.
	Description string

	// Parameters is a JSON-schema object describing the tool's arguments.
	Parameters map[string]any
}

// SessionConfig is the fixed per-deployment configuration for a new session:
// audio-only output, transcription enabled in both directions, and a declared
// tool surface.
type SessionConfig struct {
	// Instructions is the system-level prompt for the agent.
	Instructions string

	// Voice selects the agent's speech voice. Empty uses the provider default.
	Voice string

	// Tools is the set of tool declarations offered to the agent. Tool calls
	// are surfaced as [ToolCallRequest] events.
	Tools []ToolDeclaration
}

// Session is an open duplex voice session.
//
// Sends are fire-and-forget and preserve submission order. Events delivers
// exactly one ordered stream; the channel is closed when the session ends,
// after which Err reports whether it ended cleanly.
type Session interface {
	// SendAudio delivers one captured microphone frame to the agent. The
	// frame must be 16 kHz signed 16-bit mono PCM. Returns an error if the
	// session is closed or the write fails.
	SendAudio(frame audio.Frame) error

	// SendToolResult returns a tool execution result into the session. The
	// result's ID must echo the originating ToolCall's ID exactly.
	SendToolResult(result ToolResult) error

	// Events returns the single ordered server event stream. The channel is
	// closed when the session ends; consumers must process events one at a
	// time and must not dispatch a new event before the previous handler
	// returns.
	Events() <-chan ServerEvent

	// Err returns the error that terminated the session, or nil if it was
	// closed cleanly. Only meaningful after Events is closed.
	Err() error

	// Close terminates the session and releases the underlying connection.
	// Idempotent: closing an already-closed session is a no-op returning nil.
	Close() error
}

// Provider opens sessions against one concrete live-agent backend.
type Provider interface {
	// Connect establishes a new session. A failed attempt is terminal for
	// that session — there is no internal retry. The caller owns the returned
	// Session and must call Close.
	Connect(ctx context.Context, cfg SessionConfig) (Session, error)
}
