package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/audio"
	"interpreter-verify-service/internal/matcher"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/segmenter"
	"interpreter-verify-service/internal/sink"
	"interpreter-verify-service/internal/transcribe"
	"interpreter-verify-service/internal/translate"
)

// SessionConfig wires one interpretation session.
type SessionConfig struct {
	Segmenter  segmenter.Config
	Dispatcher DispatcherConfig
	// HoldTimeout is how long the sequencer waits on a missing record
	// before releasing later ones.
	HoldTimeout time.Duration
}

// DefaultSessionConfig returns the standard session settings.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		Segmenter:   segmenter.DefaultConfig(),
		Dispatcher:  DefaultDispatcherConfig(),
		HoldTimeout: 15 * time.Second,
	}
}

// SessionStats is the live counter snapshot served on the stats
// endpoint.
type SessionStats struct {
	SessionID     string          `json:"sessionId"`
	StartedAt     time.Time       `json:"startedAt"`
	UptimeSeconds float64         `json:"uptimeSeconds"`
	Segmenter     segmenter.Stats `json:"segmenter"`
	Delivered     uint64          `json:"recordsDelivered"`
	Released      uint64          `json:"recordsReleasedOnTimeout"`
	Pending       int             `json:"recordsPending"`
}

// Session runs one capture-to-delivery pipeline: audio source,
// segmenter, concurrent processing stage and ordered delivery.
type Session struct {
	ID string

	cfg     SessionConfig
	src     audio.Source
	seg     *segmenter.Segmenter
	disp    *Dispatcher
	seq     *Sequencer
	out     sink.Sink
	log     zerolog.Logger
	started time.Time
}

// NewSession assembles a session around the given collaborators.
func NewSession(
	cfg SessionConfig,
	src audio.Source,
	tr transcribe.Transcriber,
	tl translate.Translator,
	m *matcher.Matcher,
	out sink.Sink,
) *Session {
	id := uuid.NewString()
	seg := segmenter.New(cfg.Segmenter)
	seq := NewSequencer(1, cfg.HoldTimeout, out)
	disp := NewDispatcher(cfg.Dispatcher, id, tr, tl, m, seq)

	return &Session{
		ID:   id,
		cfg:  cfg,
		src:  src,
		seg:  seg,
		disp: disp,
		seq:  seq,
		out:  out,
		log:  logging.WithComponent("session").With().Str("sessionId", id).Logger(),
	}
}

// Run drives the session until the context ends or the audio source
// stops. Always drains in-flight work before returning, so every
// emitted utterance gets its record delivered. Returns the source
// failure when the device was lost.
func (s *Session) Run(ctx context.Context) error {
	s.started = time.Now()
	s.log.Info().Msg("Session started")

	frames, err := s.src.Stream(ctx)
	if err != nil {
		return err
	}

	dispDone := make(chan struct{})
	go func() {
		defer close(dispDone)
		s.disp.Run(ctx, s.seg.Utterances())
	}()

	for frame := range frames {
		s.seg.Process(frame)
	}
	s.seg.Flush()
	s.seg.Close()

	<-dispDone
	s.seq.Drain()

	stats := s.Stats()
	s.log.Info().
		Uint64("frames", stats.Segmenter.FramesProcessed).
		Uint64("utterances", stats.Segmenter.Emitted).
		Uint64("delivered", stats.Delivered).
		Uint64("released", stats.Released).
		Msg("Session finished")

	if err := s.src.Err(); err != nil {
		return err
	}
	return ctx.Err()
}

// Stats returns the live counter snapshot.
func (s *Session) Stats() SessionStats {
	started := s.started
	var uptime float64
	if !started.IsZero() {
		uptime = time.Since(started).Seconds()
	}
	return SessionStats{
		SessionID:     s.ID,
		StartedAt:     started,
		UptimeSeconds: uptime,
		Segmenter:     s.seg.Stats(),
		Delivered:     s.seq.Delivered(),
		Released:      s.seq.Released(),
		Pending:       s.seq.Pending(),
	}
}
