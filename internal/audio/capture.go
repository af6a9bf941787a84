package audio

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/observability/metrics"
)

// CaptureConfig configures the live capture source.
type CaptureConfig struct {
	SampleRate    int           // fixed per session, 16000 default
	FrameDuration time.Duration // 30ms default
	// Buffer is the frame channel depth between the device callback
	// and the ingest path. The callback never blocks: on a full buffer
	// the frame is dropped and counted as an overrun.
	Buffer int
}

// DefaultCaptureConfig returns the standard capture settings.
func DefaultCaptureConfig() CaptureConfig {
	return CaptureConfig{
		SampleRate:    16000,
		FrameDuration: 30 * time.Millisecond,
		Buffer:        64,
	}
}

// CaptureSource captures the default input device through malgo.
type CaptureSource struct {
	cfg CaptureConfig
	log zerolog.Logger

	mu      sync.Mutex
	mctx    *malgo.AllocatedContext
	device  *malgo.Device
	frames  chan Frame
	err     error
	pending []byte // residual samples smaller than one frame
	closed  bool
}

// NewCaptureSource creates a live capture source. Device init happens
// in Stream so construction cannot fail.
func NewCaptureSource(cfg CaptureConfig) *CaptureSource {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = 16000
	}
	if cfg.FrameDuration <= 0 {
		cfg.FrameDuration = 30 * time.Millisecond
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	return &CaptureSource{
		cfg: cfg,
		log: logging.WithComponent("audio.capture"),
	}
}

// Stream opens the default capture device and starts producing frames.
func (c *CaptureSource) Stream(ctx context.Context) (<-chan Frame, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, &DeviceLostError{Device: "default", Err: err}
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(c.cfg.SampleRate)

	frameBytes := 2 * c.cfg.SampleRate * int(c.cfg.FrameDuration/time.Millisecond) / 1000
	frames := make(chan Frame, c.cfg.Buffer)

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, data []byte, _ uint32) {
			c.onData(data, frameBytes, frames)
		},
		Stop: func() {
			c.onStop(frames)
		},
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, callbacks)
	if err != nil {
		mctx.Uninit()
		mctx.Free()
		return nil, &DeviceLostError{Device: "default", Err: err}
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		mctx.Free()
		return nil, &DeviceLostError{Device: "default", Err: err}
	}

	c.mu.Lock()
	c.mctx = mctx
	c.device = device
	c.frames = frames
	c.mu.Unlock()

	c.log.Info().
		Int("sampleRate", c.cfg.SampleRate).
		Dur("frameDuration", c.cfg.FrameDuration).
		Msg("Capture started")

	go func() {
		<-ctx.Done()
		c.Close()
	}()

	return frames, nil
}

// onData runs on the device callback thread. It chops incoming bytes
// into fixed-size frames and never blocks: a full channel drops the
// frame and records an overrun.
func (c *CaptureSource) onData(data []byte, frameBytes int, frames chan Frame) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.pending = append(c.pending, data...)
	var out [][]byte
	for len(c.pending) >= frameBytes {
		pcm := make([]byte, frameBytes)
		copy(pcm, c.pending[:frameBytes])
		c.pending = c.pending[frameBytes:]
		out = append(out, pcm)
	}
	c.mu.Unlock()

	now := time.Now()
	for _, pcm := range out {
		select {
		case frames <- Frame{PCM: pcm, SampleRate: c.cfg.SampleRate, Captured: now}:
		default:
			metrics.DefaultMetrics.RecordFrameOverrun()
		}
	}
}

func (c *CaptureSource) onStop(frames chan Frame) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	// Device stopped without Close: treat as device loss.
	c.err = &DeviceLostError{Device: "default", Err: errors.New("device stopped unexpectedly")}
	c.closed = true
	close(frames)
}

// Err returns the terminal capture error, if any.
func (c *CaptureSource) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Close stops the device and closes the frame channel.
func (c *CaptureSource) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	device, mctx, frames := c.device, c.mctx, c.frames
	c.device, c.mctx = nil, nil
	c.mu.Unlock()

	if device != nil {
		device.Uninit()
	}
	if mctx != nil {
		mctx.Uninit()
		mctx.Free()
	}
	if frames != nil {
		close(frames)
	}
	return nil
}
