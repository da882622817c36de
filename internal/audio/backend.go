package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/gen2brain/malgo"
)

// ErrMicPermissionDenied is returned when the OS has denied microphone access.
var ErrMicPermissionDenied = errors.New("microphone access denied")

// CaptureBackend abstracts the real miniaudio capture device so the graph can
// be exercised in tests without a microphone.
type CaptureBackend interface {
	// Open prepares the device and registers the data callback. The backend
	// delivers 16 kHz mono float32 blocks, resampling from the device's
	// native rate if needed.
	Open(onData func([]float32)) error
	Start() error
	Stop() error
	Close() error
}

// malgoBackend captures from the default microphone via miniaudio, which
// handles the native-rate to 16 kHz mono float32 conversion internally.
// Playback is never opened, so there is no feedback path to mute.
type malgoBackend struct {
	sampleRate uint32
	ctx        *malgo.AllocatedContext
	device     *malgo.Device
}

// NewMalgoBackend returns a capture backend producing mono float32 blocks at
// the given sample rate.
func NewMalgoBackend(sampleRate int) CaptureBackend {
	return &malgoBackend{sampleRate: uint32(sampleRate)}
}

func (b *malgoBackend) Open(onData func([]float32)) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("init audio context: %w", err)
	}
	b.ctx = ctx

	deviceCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceCfg.Capture.Format = malgo.FormatF32
	deviceCfg.Capture.Channels = 1
	deviceCfg.SampleRate = b.sampleRate

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, pSample []byte, frameCount uint32) {
			onData(bytesToFloat32(pSample, frameCount))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceCfg, callbacks)
	if err != nil {
		b.teardownContext()
		if isPermissionError(err) {
			return ErrMicPermissionDenied
		}
		return fmt.Errorf("init capture device: %w", err)
	}
	b.device = device
	return nil
}

func (b *malgoBackend) Start() error {
	if err := b.device.Start(); err != nil {
		if isPermissionError(err) {
			return ErrMicPermissionDenied
		}
		return fmt.Errorf("start capture device: %w", err)
	}
	return nil
}

func (b *malgoBackend) Stop() error {
	if b.device != nil {
		if err := b.device.Stop(); err != nil {
			return fmt.Errorf("stop capture device: %w", err)
		}
	}
	return nil
}

func (b *malgoBackend) Close() error {
	if b.device != nil {
		b.device.Uninit()
		b.device = nil
	}
	b.teardownContext()
	return nil
}

func (b *malgoBackend) teardownContext() {
	if b.ctx != nil {
		_ = b.ctx.Uninit()
		b.ctx.Free()
		b.ctx = nil
	}
}

func isPermissionError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "denied") ||
		strings.Contains(s, "unauthorized") ||
		strings.Contains(s, "access")
}

// bytesToFloat32 reinterprets raw little-endian float32 capture bytes.
func bytesToFloat32(data []byte, frameCount uint32) []float32 {
	samples := make([]float32, 0, frameCount)
	for i := uint32(0); i < frameCount; i++ {
		offset := i * 4
		if offset+4 > uint32(len(data)) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[offset : offset+4])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}
