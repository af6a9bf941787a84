// Package segmenter turns the raw audio frame stream into discrete
// utterances using energy-based voice activity detection.
package segmenter

import (
	"encoding/binary"
	"math"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/audio"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/observability/metrics"
)

// Utterance is one contiguous speech segment bounded by silence.
// Emitted exactly once; the audio payload transfers to the dispatcher
// and is freed after transcription.
type Utterance struct {
	ID         uint64
	Start      time.Time
	End        time.Time
	PCM        []byte // 16-bit LE mono
	SampleRate int
}

// Duration returns the utterance length.
func (u Utterance) Duration() time.Duration {
	return u.End.Sub(u.Start)
}

// Config holds the segmentation tunables.
type Config struct {
	// SilenceThresholdDB separates speech from silence in dBFS.
	SilenceThresholdDB float64
	// Hangover is how long silence must persist before the open
	// utterance closes.
	Hangover time.Duration
	// MinUtterance drops shorter utterances as likely noise.
	MinUtterance time.Duration
	// MaxUtterance force-closes long utterances to bound downstream
	// latency and memory; speech continues in a new utterance.
	MaxUtterance time.Duration
	// PreRoll prepends this much recent audio to each utterance so
	// soft onsets are not clipped.
	PreRoll time.Duration
	// QueueSize is the emission buffer depth. Emission never blocks:
	// a full buffer drops the utterance and counts an overrun.
	QueueSize int
}

// DefaultConfig returns the standard segmentation settings.
func DefaultConfig() Config {
	return Config{
		SilenceThresholdDB: -40.0,
		Hangover:           500 * time.Millisecond,
		MinUtterance:       200 * time.Millisecond,
		MaxUtterance:       30 * time.Second,
		PreRoll:            200 * time.Millisecond,
		QueueSize:          8,
	}
}

// Stats are the segmenter counters, readable concurrently.
type Stats struct {
	FramesProcessed uint64 `json:"framesProcessed"`
	Emitted         uint64 `json:"utterancesEmitted"`
	DroppedShort    uint64 `json:"utterancesDroppedShort"`
	Overruns        uint64 `json:"utteranceOverruns"`
}

// Segmenter classifies frames and emits utterances. Process must be
// called from a single goroutine, the ingest path, and never blocks
// on consumers.
type Segmenter struct {
	cfg     Config
	out     chan Utterance
	log     zerolog.Logger
	metrics *metrics.Metrics

	nextID     uint64
	inSpeech   bool
	buf        []byte
	bufStart   time.Time
	lastSpeech time.Time
	silence    time.Duration
	preroll    []audio.Frame
	prerollDur time.Duration
	sampleRate int

	framesProcessed atomic.Uint64
	emitted         atomic.Uint64
	droppedShort    atomic.Uint64
	overruns        atomic.Uint64
}

// New creates a segmenter with the given configuration.
func New(cfg Config) *Segmenter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 8
	}
	return &Segmenter{
		cfg:     cfg,
		out:     make(chan Utterance, cfg.QueueSize),
		log:     logging.WithComponent("segmenter"),
		metrics: metrics.DefaultMetrics,
		nextID:  1,
	}
}

// Utterances returns the emission channel. It closes after Close.
func (s *Segmenter) Utterances() <-chan Utterance {
	return s.out
}

// Process classifies one frame and advances the utterance state
// machine. Frames arrive in strict capture order.
func (s *Segmenter) Process(f audio.Frame) {
	s.framesProcessed.Add(1)
	s.metrics.RecordFrame()

	speech := frameEnergyDB(f.PCM) >= s.cfg.SilenceThresholdDB

	switch {
	case speech && !s.inSpeech:
		s.open(f)
	case speech && s.inSpeech:
		s.append(f)
		s.lastSpeech = f.Captured.Add(f.Duration())
		s.silence = 0
	case !speech && s.inSpeech:
		s.append(f)
		s.silence += f.Duration()
		if s.silence >= s.cfg.Hangover {
			s.closeUtterance(false)
		}
	default:
		s.pushPreroll(f)
	}

	if s.inSpeech && s.lastSpeech.Sub(s.bufStart) >= s.cfg.MaxUtterance {
		s.closeUtterance(true)
	}
}

// Flush closes any open utterance at end of stream.
func (s *Segmenter) Flush() {
	if s.inSpeech {
		s.closeUtterance(false)
	}
}

// Close closes the emission channel. Call after Flush, once the ingest
// path has stopped.
func (s *Segmenter) Close() {
	close(s.out)
}

// Stats returns a snapshot of the counters.
func (s *Segmenter) Stats() Stats {
	return Stats{
		FramesProcessed: s.framesProcessed.Load(),
		Emitted:         s.emitted.Load(),
		DroppedShort:    s.droppedShort.Load(),
		Overruns:        s.overruns.Load(),
	}
}

func (s *Segmenter) open(f audio.Frame) {
	s.inSpeech = true
	s.sampleRate = f.SampleRate
	s.silence = 0

	s.buf = s.buf[:0]
	s.bufStart = f.Captured
	for _, p := range s.preroll {
		s.buf = append(s.buf, p.PCM...)
		if p.Captured.Before(s.bufStart) {
			s.bufStart = p.Captured
		}
	}
	s.preroll = s.preroll[:0]
	s.prerollDur = 0

	s.buf = append(s.buf, f.PCM...)
	s.lastSpeech = f.Captured.Add(f.Duration())
}

func (s *Segmenter) append(f audio.Frame) {
	s.buf = append(s.buf, f.PCM...)
}

func (s *Segmenter) pushPreroll(f audio.Frame) {
	if s.cfg.PreRoll <= 0 {
		return
	}
	s.preroll = append(s.preroll, f)
	s.prerollDur += f.Duration()
	for s.prerollDur > s.cfg.PreRoll && len(s.preroll) > 0 {
		s.prerollDur -= s.preroll[0].Duration()
		s.preroll = s.preroll[1:]
	}
}

// closeUtterance ends the open utterance and emits it when long enough.
// forced marks a max-duration split: the state machine stays in speech
// and opens a continuation.
func (s *Segmenter) closeUtterance(forced bool) {
	start, end := s.bufStart, s.lastSpeech
	if !end.After(start) {
		end = start.Add(time.Millisecond)
	}
	dur := end.Sub(start)

	if dur < s.cfg.MinUtterance {
		s.droppedShort.Add(1)
		s.metrics.RecordUtteranceDroppedShort()
		s.resetAfterClose(forced, end)
		return
	}

	pcm := make([]byte, len(s.buf))
	copy(pcm, s.buf)
	u := Utterance{
		ID:         s.nextID,
		Start:      start,
		End:        end,
		PCM:        pcm,
		SampleRate: s.sampleRate,
	}

	select {
	case s.out <- u:
		s.nextID++
		s.emitted.Add(1)
		s.metrics.RecordUtteranceEmitted(dur.Seconds())
		s.log.Debug().
			Uint64("utteranceId", u.ID).
			Dur("duration", dur).
			Bool("forced", forced).
			Msg("Utterance emitted")
	default:
		s.overruns.Add(1)
		s.metrics.RecordOverflowDrop()
		s.log.Warn().
			Dur("duration", dur).
			Msg("Utterance dropped: emission queue full")
	}

	s.resetAfterClose(forced, end)
}

func (s *Segmenter) resetAfterClose(forced bool, end time.Time) {
	s.buf = s.buf[:0]
	s.silence = 0
	if forced {
		// Continuation utterance: still in speech.
		s.bufStart = end
		s.lastSpeech = end
		return
	}
	s.inSpeech = false
}

// frameEnergyDB computes RMS energy of 16-bit LE PCM in dBFS.
// All-zero or empty frames report -120 dB.
func frameEnergyDB(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return -120.0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sample := int16(binary.LittleEndian.Uint16(pcm[2*i:]))
		v := float64(sample) / 32768.0
		sum += v * v
	}
	rms := math.Sqrt(sum / float64(n))
	if rms <= 0 {
		return -120.0
	}
	return 20 * math.Log10(rms)
}
