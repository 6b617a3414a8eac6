package playback

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"

	"github.com/voxdesk/voxdesk/pkg/audio"
)

// Device is a [Sink] backed by the default system playback device at
// 24 kHz signed 16-bit mono. The device callback pulls from an internal
// buffer; when the buffer runs dry the output is silence.
type Device struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device

	bufMu sync.Mutex
	buf   []byte

	closeOnce sync.Once
	closeErr  error
}

// OpenDevice acquires the default playback device and starts it. On failure
// all partially-acquired resources are released before returning.
func OpenDevice() (*Device, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("playback: init context: %w", err)
	}

	d := &Device{ctx: mctx}

	format := malgo.FormatS16
	bytesPerFrame := malgo.SampleSizeInBytes(format) // mono

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.SampleRate = uint32(audio.PlaybackRate)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = 1
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.PeriodSizeInFrames = uint32(audio.PlaybackRate / 10) // ~100ms

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			d.fill(pOutput, int(frameCount)*bytesPerFrame)
		},
	})
	if err != nil {
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("playback: init device: %w", err)
	}
	d.device = device

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = mctx.Uninit()
		mctx.Free()
		return nil, fmt.Errorf("playback: start device: %w", err)
	}

	return d, nil
}

// fill copies up to need bytes of buffered PCM into the device output. The
// remainder of pOutput is already zeroed by miniaudio (silence).
func (d *Device) fill(pOutput []byte, need int) {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()

	if len(d.buf) == 0 {
		return
	}
	n := copy(pOutput[:min(need, len(pOutput))], d.buf)
	d.buf = d.buf[n:]
}

// Enqueue appends PCM to the playback buffer.
func (d *Device) Enqueue(pcm []byte) error {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	d.buf = append(d.buf, pcm...)
	return nil
}

// Clear discards all buffered, not-yet-played audio. The current device
// period finishes on its own; everything queued behind it is dropped.
func (d *Device) Clear() {
	d.bufMu.Lock()
	defer d.bufMu.Unlock()
	d.buf = nil
}

// Close stops the device and releases the miniaudio context. Idempotent.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		if d.device != nil {
			d.device.Uninit()
			d.device = nil
		}
		if d.ctx != nil {
			if err := d.ctx.Uninit(); err != nil {
				d.closeErr = fmt.Errorf("playback: uninit context: %w", err)
			}
			d.ctx.Free()
			d.ctx = nil
		}
	})
	return d.closeErr
}
