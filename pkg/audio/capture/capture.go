// Package capture acquires the default microphone and produces a stream of
// fixed-size, wire-ready PCM frames at 16 kHz mono.
//
// The hardware callback runs on miniaudio's realtime thread and must never
// block: completed frames are handed off through a bounded channel and are
// dropped (with a counter) when the consumer falls behind. Backpressure on
// the capture path would stall the device, which is worse than losing a
// frame of microphone audio.
package capture

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxdesk/voxdesk/pkg/audio"
)

// ErrDeviceUnavailable is returned by Open when the capture device cannot be
// acquired (missing hardware, permission denied, or held by another process).
var ErrDeviceUnavailable = errors.New("capture: audio device unavailable")

const (
	// DefaultFrameSize is the number of samples per emitted frame
	// (256 ms at 16 kHz).
	DefaultFrameSize = 4096

	// frameBuf is the depth of the outgoing frame channel. At 256 ms per
	// frame this absorbs roughly two seconds of consumer stall.
	frameBuf = 8

	bytesPerFloat32 = 4
)

// Config controls how the microphone is opened.
type Config struct {
	// FrameSize is the number of samples per emitted frame. Zero selects
	// [DefaultFrameSize].
	FrameSize int

	// OnDrop, if non-nil, is invoked once per frame dropped because the
	// consumer fell behind. Called from the device callback; must not block.
	OnDrop func()
}

// Capture owns an exclusively-acquired microphone device and the goroutine-
// free framing pipeline behind [Capture.Frames].
type Capture struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	framer *framer
	frames chan audio.Frame

	closeOnce sync.Once
	closeErr  error
}

// Open initialises miniaudio, acquires the default capture device at
// 16 kHz float32 mono, and starts capturing. On any failure the device and
// context are torn down before returning, so nothing is left held.
func Open(cfg Config) (*Capture, error) {
	frameSize := cfg.FrameSize
	if frameSize <= 0 {
		frameSize = DefaultFrameSize
	}

	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: init context: %v", ErrDeviceUnavailable, err)
	}

	c := &Capture{
		ctx:    mctx,
		frames: make(chan audio.Frame, frameBuf),
	}
	c.framer = newFramer(frameSize, c.deliver, cfg.OnDrop)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.SampleRate = uint32(audio.CaptureRate)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.PerformanceProfile = malgo.LowLatency

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(_, pInput []byte, frameCount uint32) {
			n := int(frameCount) * bytesPerFloat32
			if n == 0 || len(pInput) < n {
				return
			}
			c.framer.push(pInput[:n])
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: init device: %v", ErrDeviceUnavailable, err)
	}
	c.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("%w: start device: %v", ErrDeviceUnavailable, err)
	}

	return c, nil
}

// Frames returns the stream of encoded capture frames. The channel is closed
// by [Capture.Close].
func (c *Capture) Frames() <-chan audio.Frame { return c.frames }

// deliver hands a completed frame to the consumer without blocking the
// device callback. Reports whether the frame was accepted.
func (c *Capture) deliver(frame audio.Frame) bool {
	select {
	case c.frames <- frame:
		return true
	default:
		return false
	}
}

// Close synchronously detaches from the device and releases the miniaudio
// context. Idempotent: repeated calls have no effect beyond the first.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		if c.device != nil {
			c.device.Uninit()
			c.device = nil
		}
		if c.ctx != nil {
			if err := c.ctx.Uninit(); err != nil {
				c.closeErr = fmt.Errorf("capture: uninit context: %w", err)
			}
			c.ctx.Free()
			c.ctx = nil
		}
		close(c.frames)
	})
	return c.closeErr
}

// framer accumulates raw float32 capture bytes into fixed-size sample
// buffers and emits them as encoded PCM16 frames. It is driven entirely by
// the device callback; no locking is needed because miniaudio serialises
// data callbacks per device.
type framer struct {
	frameSize int
	samples   []float32
	emit      func(audio.Frame) bool
	onDrop    func()

	dropLogged bool
}

func newFramer(frameSize int, emit func(audio.Frame) bool, onDrop func()) *framer {
	return &framer{
		frameSize: frameSize,
		samples:   make([]float32, 0, frameSize),
		emit:      emit,
		onDrop:    onDrop,
	}
}

// push consumes little-endian float32 sample bytes. A trailing partial
// sample is impossible as long as callers pass whole-sample slices, which
// the device callback guarantees.
func (f *framer) push(p []byte) {
	for i := 0; i+bytesPerFloat32 <= len(p); i += bytesPerFloat32 {
		bits := uint32(p[i]) | uint32(p[i+1])<<8 | uint32(p[i+2])<<16 | uint32(p[i+3])<<24
		f.samples = append(f.samples, math.Float32frombits(bits))

		if len(f.samples) == f.frameSize {
			frame := audio.Frame{
				Data:       audio.EncodeFloat32(f.samples),
				SampleRate: audio.CaptureRate,
				Channels:   1,
			}
			if !f.emit(frame) {
				if f.onDrop != nil {
					f.onDrop()
				}
				if !f.dropLogged {
					f.dropLogged = true
					slog.Warn("capture: consumer behind, dropping frames")
				}
			}
			f.samples = f.samples[:0]
		}
	}
}
