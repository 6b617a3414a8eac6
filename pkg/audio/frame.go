// Package audio defines the PCM frame type and sample-level helpers shared by
// the capture, playback, and transport layers.
//
// The pipeline runs on exactly two fixed profiles: microphone input is
// 16 kHz signed 16-bit mono, agent output is 24 kHz signed 16-bit mono.
// There is no format negotiation — a frame's SampleRate field exists so that
// consumers can verify which side of the pipeline a frame belongs to.
package audio

import (
	"fmt"
	"time"
)

const (
	// CaptureRate is the sample rate of microphone input in Hz.
	CaptureRate = 16000

	// PlaybackRate is the sample rate of agent audio output in Hz.
	PlaybackRate = 24000

	// BytesPerSample is the width of one signed 16-bit PCM sample.
	BytesPerSample = 2
)

// Frame is a single fixed-size unit of mono PCM audio flowing through the
// pipeline. Ownership passes from producer to consumer; frames are consumed
// immediately and never retained.
type Frame struct {
	// Data holds little-endian signed 16-bit PCM samples.
	Data []byte

	// SampleRate in Hz ([CaptureRate] for mic frames, [PlaybackRate] for
	// agent output).
	SampleRate int

	// Channels is always 1 in this pipeline.
	Channels int
}

// Duration returns the playback duration of the frame.
func (f Frame) Duration() time.Duration {
	return PCMDuration(f.Data, f.SampleRate, f.Channels)
}

// MIMEType returns the wire descriptor for the frame's format, e.g.
// "audio/pcm;rate=16000".
func (f Frame) MIMEType() string {
	return fmt.Sprintf("audio/pcm;rate=%d", f.SampleRate)
}

// PCMDuration returns how long the given little-endian int16 PCM buffer
// plays for at the given sample rate and channel count. Returns zero for
// non-positive rates or channel counts.
func PCMDuration(pcm []byte, sampleRate, channels int) time.Duration {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	samples := len(pcm) / (BytesPerSample * channels)
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}
