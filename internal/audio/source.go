// Package audio defines the PCM frame stream consumed by the
// segmenter, with sources for live capture and file replay.
package audio

import (
	"context"
	"fmt"
	"time"
)

// Frame is one fixed-size block of 16-bit little-endian mono PCM.
// Frames are ephemeral: the segmenter owns them while accumulating an
// utterance and they must not be retained by anything else.
type Frame struct {
	PCM        []byte // 16-bit LE mono samples
	SampleRate int
	Captured   time.Time
}

// Duration returns the frame's play time.
func (f Frame) Duration() time.Duration {
	if f.SampleRate <= 0 {
		return 0
	}
	samples := len(f.PCM) / 2
	return time.Duration(samples) * time.Second / time.Duration(f.SampleRate)
}

// DeviceLostError is terminal: the capture device went away and the
// session cannot continue.
type DeviceLostError struct {
	Device string
	Err    error
}

func (e *DeviceLostError) Error() string {
	return fmt.Sprintf("audio device lost (%s): %v", e.Device, e.Err)
}

func (e *DeviceLostError) Unwrap() error { return e.Err }

// Source produces an unbounded sequence of frames with a fixed format
// per session.
type Source interface {
	// Stream starts production. The returned channel closes when the
	// source ends or ctx is cancelled.
	Stream(ctx context.Context) (<-chan Frame, error)

	// Err returns the terminal error after the frame channel closes,
	// or nil for a clean end of stream.
	Err() error

	// Close releases device resources.
	Close() error
}
