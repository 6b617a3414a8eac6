package session

import (
	"testing"

	"github.com/voxdesk/voxdesk/pkg/live"
)

func TestAccumulator_UserBeforeAgent(t *testing.T) {
	t.Parallel()
	var acc accumulator

	// Agent fragments usually arrive first; order in the output must still
	// be user utterance, then agent utterance.
	acc.add(live.SpeakerAgent, "Opening ")
	acc.add(live.SpeakerUser, "open ")
	acc.add(live.SpeakerUser, "chrome")
	acc.add(live.SpeakerAgent, "Chrome now.")

	entries := acc.finalize()
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	if entries[0].Speaker != live.SpeakerUser || entries[0].Text != "open chrome" {
		t.Errorf("entries[0] = %+v, want user utterance", entries[0])
	}
	if entries[1].Speaker != live.SpeakerAgent || entries[1].Text != "Opening Chrome now." {
		t.Errorf("entries[1] = %+v, want agent utterance", entries[1])
	}
}

func TestAccumulator_FinalizeResetsBuffers(t *testing.T) {
	t.Parallel()
	var acc accumulator

	acc.add(live.SpeakerUser, "hello")
	if got := acc.finalize(); len(got) != 1 {
		t.Fatalf("first finalize returned %d entries, want 1", len(got))
	}
	if got := acc.finalize(); got != nil {
		t.Errorf("second finalize returned %v, want nil", got)
	}
}

func TestAccumulator_WhitespaceOnlyOmitted(t *testing.T) {
	t.Parallel()
	var acc accumulator

	acc.add(live.SpeakerUser, "  \n ")
	acc.add(live.SpeakerAgent, "Sure thing.")

	entries := acc.finalize()
	if len(entries) != 1 {
		t.Fatalf("len(entries) = %d, want 1", len(entries))
	}
	if entries[0].Speaker != live.SpeakerAgent {
		t.Errorf("speaker = %v, want agent", entries[0].Speaker)
	}
}

func TestAccumulator_UnknownSpeakerIgnored(t *testing.T) {
	t.Parallel()
	var acc accumulator

	acc.add(live.SpeakerSystem, "internal note")
	if got := acc.finalize(); got != nil {
		t.Errorf("finalize = %v, want nil", got)
	}
}

func TestAccumulator_ResetDiscardsFragments(t *testing.T) {
	t.Parallel()
	var acc accumulator

	acc.add(live.SpeakerAgent, "half a resp")
	acc.reset()
	if got := acc.finalize(); got != nil {
		t.Errorf("finalize after reset = %v, want nil", got)
	}
}
