package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/observability/metrics"
	"interpreter-verify-service/internal/sink"
)

// Sequencer re-establishes utterance order on the far side of the
// concurrent processing stage. Records arrive in completion order and
// leave in utterance ID order, exactly one per utterance. A record
// stuck at the head of the line is released past after HoldTimeout so
// one slow utterance cannot dam the session. Strict ordering is
// relaxed on that path only: a record arriving after its ID was
// skipped is still delivered, out of order and marked
// ReleasedOnTimeout, rather than dropped.
type Sequencer struct {
	out     sink.Sink
	timeout time.Duration
	log     zerolog.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	next         uint64
	pending      map[uint64]*models.PipelineRecord
	waitingFor   uint64
	waitingSince time.Time

	done     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	delivered atomic.Uint64
	released  atomic.Uint64
}

// NewSequencer creates a sequencer expecting utterance IDs from first
// upward. holdTimeout zero disables timeout release.
func NewSequencer(first uint64, holdTimeout time.Duration, out sink.Sink) *Sequencer {
	s := &Sequencer{
		out:     out,
		timeout: holdTimeout,
		log:     logging.WithComponent("sequencer"),
		metrics: metrics.DefaultMetrics,
		next:    first,
		pending: make(map[uint64]*models.PipelineRecord),
		done:    make(chan struct{}),
	}
	if holdTimeout > 0 {
		interval := holdTimeout / 4
		if interval < 100*time.Millisecond {
			interval = 100 * time.Millisecond
		}
		s.wg.Add(1)
		go s.watch(interval)
	}
	return s
}

// Submit hands one finished record to the sequencer. Safe for
// concurrent use; delivery happens on the caller's goroutine when the
// record is next in line.
func (s *Sequencer) Submit(rec *models.PipelineRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.UtteranceID < s.next {
		// Already released past this ID by a timeout; deliver late
		// rather than drop, marked so the consumer can tell.
		rec.Markers.ReleasedOnTimeout = true
		s.deliverLocked(rec)
		return
	}
	s.pending[rec.UtteranceID] = rec
	s.flushLocked()
}

// MarkDropped records an utterance dropped before processing started.
// The cancelled record keeps the delivery sequence gap-free.
func (s *Sequencer) MarkDropped(rec *models.PipelineRecord) {
	rec.Markers.Cancelled = true
	s.Submit(rec)
}

// Pending reports how many records wait for an earlier one.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Delivered reports how many records have left the sequencer.
func (s *Sequencer) Delivered() uint64 { return s.delivered.Load() }

// Released reports how many deliveries involved a timeout release.
func (s *Sequencer) Released() uint64 { return s.released.Load() }

// Drain stops the timeout watcher and flushes every pending record in
// ascending ID order. Call once, after the processing stage has
// finished submitting.
func (s *Sequencer) Drain() {
	s.stopOnce.Do(func() { close(s.done) })
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.pending) > 0 {
		s.next = s.minPendingLocked()
		s.flushLocked()
	}
}

func (s *Sequencer) watch(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.releaseStale()
		}
	}
}

// releaseStale skips past a head-of-line gap that has been blocking
// longer than the hold timeout.
func (s *Sequencer) releaseStale() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) == 0 || s.waitingSince.IsZero() {
		return
	}
	if time.Since(s.waitingSince) < s.timeout {
		return
	}

	lo := s.minPendingLocked()
	s.log.Warn().
		Uint64("awaited", s.next).
		Uint64("releasing", lo).
		Dur("held", time.Since(s.waitingSince)).
		Msg("Head-of-line timeout, releasing pending records")

	s.pending[lo].Markers.ReleasedOnTimeout = true
	s.released.Add(1)
	s.next = lo
	s.flushLocked()
}

// flushLocked delivers the run of consecutive records starting at next
// and resets the head-of-line wait clock.
func (s *Sequencer) flushLocked() {
	for {
		rec, ok := s.pending[s.next]
		if !ok {
			break
		}
		delete(s.pending, s.next)
		s.next++
		s.deliverLocked(rec)
	}
	// The wait clock restarts only when the awaited ID changes, so
	// later arrivals cannot keep resetting a head-of-line timeout.
	if len(s.pending) == 0 {
		s.waitingFor = 0
		s.waitingSince = time.Time{}
	} else if s.waitingFor != s.next {
		s.waitingFor = s.next
		s.waitingSince = time.Now()
	}
	s.metrics.SequencerPending.Set(float64(len(s.pending)))
}

func (s *Sequencer) deliverLocked(rec *models.PipelineRecord) {
	now := time.Now()
	rec.Timestamp = now.UnixMilli()
	if rec.EventType == "" {
		rec.EventType = "interpreter.utterance.record"
	}

	latency := float64(rec.Timestamp-rec.EndTs) / 1000.0
	if latency < 0 {
		latency = 0
	}

	if err := s.out.Deliver(context.Background(), rec); err != nil {
		s.log.Error().Err(err).Uint64("utteranceId", rec.UtteranceID).Msg("Sink delivery failed")
	}

	s.delivered.Add(1)
	s.metrics.RecordDelivery(degradedReason(rec.Markers), latency)
}

func (s *Sequencer) minPendingLocked() uint64 {
	var lo uint64
	first := true
	for id := range s.pending {
		if first || id < lo {
			lo = id
			first = false
		}
	}
	return lo
}

func degradedReason(m models.RecordMarkers) string {
	switch {
	case m.TranscriptionFailure != "":
		return "transcription"
	case m.TranslationFailure != "":
		return "translation"
	case m.Cancelled:
		return "cancelled"
	case m.ReleasedOnTimeout:
		return "timeout"
	default:
		return ""
	}
}
