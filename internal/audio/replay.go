package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// wavHeaderSize is the standard PCM WAV header length.
const wavHeaderSize = 44

// BufferSource replays an in-memory PCM buffer as a frame stream.
// With Realtime set it paces frames at play speed, otherwise it emits
// as fast as the consumer reads. Used by the wavfeed tool and tests.
type BufferSource struct {
	pcm        []byte
	sampleRate int
	frameDur   time.Duration
	realtime   bool

	mu     sync.Mutex
	err    error
	closed chan struct{}
	once   sync.Once
}

// NewBufferSource wraps raw 16-bit LE mono PCM.
func NewBufferSource(pcm []byte, sampleRate int, frameDur time.Duration, realtime bool) *BufferSource {
	if frameDur <= 0 {
		frameDur = 30 * time.Millisecond
	}
	return &BufferSource{
		pcm:        pcm,
		sampleRate: sampleRate,
		frameDur:   frameDur,
		realtime:   realtime,
		closed:     make(chan struct{}),
	}
}

// NewWAVSource reads a PCM WAV file and replays its sample data.
// Only 16-bit mono files are accepted; the sample rate is taken from
// the header.
func NewWAVSource(path string, frameDur time.Duration, realtime bool) (*BufferSource, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) < wavHeaderSize {
		return nil, errors.New("wav file too short")
	}
	if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, errors.New("not a WAV file")
	}
	channels := binary.LittleEndian.Uint16(data[22:24])
	sampleRate := binary.LittleEndian.Uint32(data[24:28])
	bits := binary.LittleEndian.Uint16(data[34:36])
	if channels != 1 || bits != 16 {
		return nil, fmt.Errorf("unsupported WAV format: %d channels, %d bits (want 16-bit mono)", channels, bits)
	}
	return NewBufferSource(data[wavHeaderSize:], int(sampleRate), frameDur, realtime), nil
}

// Stream emits the buffer frame by frame.
func (b *BufferSource) Stream(ctx context.Context) (<-chan Frame, error) {
	frameBytes := 2 * b.sampleRate * int(b.frameDur/time.Millisecond) / 1000
	if frameBytes <= 0 {
		return nil, errors.New("frame size resolves to zero bytes")
	}
	frames := make(chan Frame)

	go func() {
		defer close(frames)
		start := time.Now()
		for off, i := 0, 0; off < len(b.pcm); off, i = off+frameBytes, i+1 {
			end := off + frameBytes
			if end > len(b.pcm) {
				end = len(b.pcm)
			}
			f := Frame{
				PCM:        b.pcm[off:end],
				SampleRate: b.sampleRate,
				Captured:   start.Add(time.Duration(i) * b.frameDur),
			}
			if b.realtime {
				select {
				case <-time.After(b.frameDur):
				case <-ctx.Done():
					return
				case <-b.closed:
					return
				}
			}
			select {
			case frames <- f:
			case <-ctx.Done():
				return
			case <-b.closed:
				return
			}
		}
	}()

	return frames, nil
}

// Err always returns nil: replay ends cleanly or by cancellation.
func (b *BufferSource) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

// Close stops the replay goroutine.
func (b *BufferSource) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// WriteWAV writes 16-bit mono PCM as a WAV file, for capture debugging.
func WriteWAV(w io.Writer, pcm []byte, sampleRate int) error {
	dataLen := uint32(len(pcm))
	var header [wavHeaderSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(header[22:24], 1) // mono
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate)*2)
	binary.LittleEndian.PutUint16(header[32:34], 2)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataLen)
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(pcm)
	return err
}
