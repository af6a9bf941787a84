package audio

import (
	"errors"
	"strings"
	"testing"
)

func TestCaptureUnexpectedStopSurfacesDeviceLost(t *testing.T) {
	c := NewCaptureSource(DefaultCaptureConfig())
	frames := make(chan Frame)

	c.onStop(frames)

	var lost *DeviceLostError
	if !errors.As(c.Err(), &lost) {
		t.Fatalf("Err() = %v, want DeviceLostError", c.Err())
	}
	if lost.Err == nil {
		t.Error("DeviceLostError carries no inner error")
	}
	if msg := lost.Error(); strings.Contains(msg, "<nil>") {
		t.Errorf("Error() = %q renders a nil inner error", msg)
	}
	if _, ok := <-frames; ok {
		t.Error("frame channel not closed on device stop")
	}
}

func TestCaptureCloseIsNotDeviceLoss(t *testing.T) {
	c := NewCaptureSource(DefaultCaptureConfig())
	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.Err() != nil {
		t.Errorf("Err() = %v after clean close", c.Err())
	}

	// A stop callback racing a finished Close must not overwrite the
	// clean shutdown.
	c.onStop(make(chan Frame))
	if c.Err() != nil {
		t.Errorf("Err() = %v, stop after close should be ignored", c.Err())
	}
}
