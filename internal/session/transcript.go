package session

import (
	"strings"

	"github.com/voxdesk/voxdesk/pkg/live"
)

// Entry is one finalized utterance of a conversation turn.
type Entry struct {
	Speaker live.Speaker
	Text    string
}

// accumulator collects partial transcript fragments for the current turn.
// Fragments arrive interleaved from the agent connection; the user and agent
// sides are buffered separately and joined into whole utterances when the
// turn completes.
//
// accumulator is not safe for concurrent use. It is owned by the session
// actor goroutine.
type accumulator struct {
	user  strings.Builder
	agent strings.Builder
}

// add appends a transcript fragment to the buffer for its speaker. Fragments
// from unknown speakers are ignored.
func (a *accumulator) add(speaker live.Speaker, text string) {
	switch speaker {
	case live.SpeakerUser:
		a.user.WriteString(text)
	case live.SpeakerAgent:
		a.agent.WriteString(text)
	}
}

// finalize returns the completed turn as entries, user utterance before agent
// utterance, and resets the buffers. Sides that accumulated only whitespace
// are omitted. Returns nil when the turn produced no text at all.
func (a *accumulator) finalize() []Entry {
	var entries []Entry
	if text := strings.TrimSpace(a.user.String()); text != "" {
		entries = append(entries, Entry{Speaker: live.SpeakerUser, Text: text})
	}
	if text := strings.TrimSpace(a.agent.String()); text != "" {
		entries = append(entries, Entry{Speaker: live.SpeakerAgent, Text: text})
	}
	a.reset()
	return entries
}

// reset discards any buffered fragments without emitting them. Used when the
// agent's response is interrupted mid-turn.
func (a *accumulator) reset() {
	a.user.Reset()
	a.agent.Reset()
}
