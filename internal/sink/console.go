package sink

import (
	"context"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/observability/logging"
)

// Console writes each record to the structured log, with one warning
// line per terminology match so the interpreter sees flags inline.
type Console struct {
	log zerolog.Logger
}

// NewConsole creates a console sink.
func NewConsole() *Console {
	return &Console{log: logging.WithComponent("console")}
}

// Deliver implements Sink.
func (c *Console) Deliver(ctx context.Context, rec *models.PipelineRecord) error {
	ev := c.log.Info()
	if rec.Markers.Degraded() {
		ev = c.log.Warn()
	}
	ev = ev.Uint64("utteranceId", rec.UtteranceID)
	if rec.Transcript != nil {
		ev = ev.Str("language", string(rec.Transcript.DetectedLanguage)).
			Str("transcript", rec.Transcript.Text)
	}
	if rec.Translation != nil {
		ev = ev.Str("translation", rec.Translation.TranslatedText)
	}
	if rec.Markers.TranscriptionFailure != "" {
		ev = ev.Str("transcriptionFailure", rec.Markers.TranscriptionFailure)
	}
	if rec.Markers.TranslationFailure != "" {
		ev = ev.Str("translationFailure", rec.Markers.TranslationFailure)
	}
	if rec.Markers.ReleasedOnTimeout {
		ev = ev.Bool("releasedOnTimeout", true)
	}
	if rec.Markers.Cancelled {
		ev = ev.Bool("cancelled", true)
	}
	ev.Int("matches", len(rec.Matches)).Msg("Utterance")

	for _, m := range rec.Matches {
		c.log.Warn().
			Uint64("utteranceId", rec.UtteranceID).
			Str("term", m.MatchedTerm).
			Str("category", string(m.Category)).
			Str("risk", string(m.Risk)).
			Str("kind", string(m.Kind)).
			Float64("similarity", m.Similarity).
			Str("guidance", m.Guidance).
			Msg("Terminology flag")
	}
	return nil
}

// Close implements Sink.
func (c *Console) Close() error { return nil }
