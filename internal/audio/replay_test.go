package audio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestBufferSourceChopsFrames(t *testing.T) {
	pcm := make([]byte, 960*3+400) // three full frames plus a partial
	src := NewBufferSource(pcm, 16000, 30*time.Millisecond, false)

	frames, err := src.Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []Frame
	for f := range frames {
		got = append(got, f)
	}
	if len(got) != 4 {
		t.Fatalf("got %d frames, want 4", len(got))
	}
	for i := 0; i < 3; i++ {
		if len(got[i].PCM) != 960 {
			t.Errorf("frame %d size = %d, want 960", i, len(got[i].PCM))
		}
		if got[i].SampleRate != 16000 {
			t.Errorf("frame %d sample rate = %d", i, got[i].SampleRate)
		}
	}
	if len(got[3].PCM) != 400 {
		t.Errorf("last frame size = %d, want 400", len(got[3].PCM))
	}
	// Capture timestamps advance by one frame duration.
	if d := got[1].Captured.Sub(got[0].Captured); d != 30*time.Millisecond {
		t.Errorf("frame spacing = %v, want 30ms", d)
	}
	if err := src.Err(); err != nil {
		t.Errorf("Err = %v", err)
	}
}

func TestBufferSourceCancellation(t *testing.T) {
	pcm := make([]byte, 960*1000)
	src := NewBufferSource(pcm, 16000, 30*time.Millisecond, true)

	ctx, cancel := context.WithCancel(context.Background())
	frames, err := src.Stream(ctx)
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	cancel()

	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-frames:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("frame channel did not close after cancel")
		}
	}
}

func TestWAVRoundTrip(t *testing.T) {
	pcm := make([]byte, 960*2)
	for i := range pcm {
		pcm[i] = byte(i)
	}

	var buf bytes.Buffer
	if err := WriteWAV(&buf, pcm, 16000); err != nil {
		t.Fatalf("WriteWAV: %v", err)
	}

	path := filepath.Join(t.TempDir(), "sample.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	src, err := NewWAVSource(path, 30*time.Millisecond, false)
	if err != nil {
		t.Fatalf("NewWAVSource: %v", err)
	}
	frames, err := src.Stream(context.Background())
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	var got []byte
	for f := range frames {
		got = append(got, f.PCM...)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("replayed %d bytes, want original %d bytes back", len(got), len(pcm))
	}
}

func TestNewWAVSourceRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated", []byte("RIFF")},
		{"not riff", bytes.Repeat([]byte{0}, 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".wav")
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := NewWAVSource(path, 30*time.Millisecond, false); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFrameDuration(t *testing.T) {
	f := Frame{PCM: make([]byte, 960), SampleRate: 16000}
	if got := f.Duration(); got != 30*time.Millisecond {
		t.Errorf("Duration = %v, want 30ms", got)
	}
}
