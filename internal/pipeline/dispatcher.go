// Package pipeline runs utterances through transcription, terminology
// matching and translation, then restores utterance order for delivery.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/matcher"
	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/observability/metrics"
	"interpreter-verify-service/internal/segmenter"
	"interpreter-verify-service/internal/transcribe"
	"interpreter-verify-service/internal/translate"
)

// DispatcherConfig bounds the concurrent processing stage.
type DispatcherConfig struct {
	// MaxInFlight utterances process concurrently.
	MaxInFlight int
	// MaxQueued utterances wait for a slot. Beyond that the oldest
	// waiting utterance is dropped as a cancelled record.
	MaxQueued int
}

// DefaultDispatcherConfig returns the standard stage bounds.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{MaxInFlight: 4, MaxQueued: 16}
}

// Dispatcher pulls utterances off the segmenter channel and fans them
// out to the processing stages. Every utterance that enters produces
// exactly one record at the sequencer: a full one, a degraded one, or
// a cancelled marker for queue overflow drops.
type Dispatcher struct {
	cfg         DispatcherConfig
	sessionID   string
	transcriber transcribe.Transcriber
	translator  translate.Translator
	matcher     *matcher.Matcher
	seq         *Sequencer
	log         zerolog.Logger
	metrics     *metrics.Metrics
}

// NewDispatcher creates a dispatcher feeding the given sequencer.
func NewDispatcher(
	cfg DispatcherConfig,
	sessionID string,
	tr transcribe.Transcriber,
	tl translate.Translator,
	m *matcher.Matcher,
	seq *Sequencer,
) *Dispatcher {
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = 4
	}
	if cfg.MaxQueued <= 0 {
		cfg.MaxQueued = 16
	}
	return &Dispatcher{
		cfg:         cfg,
		sessionID:   sessionID,
		transcriber: tr,
		translator:  tl,
		matcher:     m,
		seq:         seq,
		log:         logging.WithComponent("dispatcher"),
		metrics:     metrics.DefaultMetrics,
	}
}

// Run consumes the utterance channel until it closes, then waits for
// all in-flight work. The caller drains the sequencer afterwards.
func (d *Dispatcher) Run(ctx context.Context, in <-chan segmenter.Utterance) {
	var (
		wg       sync.WaitGroup
		inFlight int
		queue    []segmenter.Utterance
	)
	done := make(chan struct{}, d.cfg.MaxInFlight)

	start := func(u segmenter.Utterance) {
		inFlight++
		d.metrics.DispatchInFlight.Set(float64(inFlight))
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.process(ctx, u)
			done <- struct{}{}
		}()
	}

	for in != nil || inFlight > 0 {
		select {
		case u, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			if inFlight < d.cfg.MaxInFlight {
				start(u)
				continue
			}
			queue = append(queue, u)
			if len(queue) > d.cfg.MaxQueued {
				dropped := queue[0]
				queue = queue[1:]
				d.dropOverflow(dropped)
			}
			d.metrics.DispatchQueueDepth.Set(float64(len(queue)))

		case <-done:
			inFlight--
			if len(queue) > 0 {
				start(queue[0])
				queue = queue[1:]
			}
			d.metrics.DispatchInFlight.Set(float64(inFlight))
			d.metrics.DispatchQueueDepth.Set(float64(len(queue)))
		}
	}
	wg.Wait()
	d.metrics.DispatchInFlight.Set(0)
	d.metrics.DispatchQueueDepth.Set(0)
}

// dropOverflow emits the cancelled marker record for an utterance that
// never started processing.
func (d *Dispatcher) dropOverflow(u segmenter.Utterance) {
	d.metrics.RecordOverflowDrop()
	d.log.Warn().
		Uint64("utteranceId", u.ID).
		Dur("duration", u.Duration()).
		Msg("Utterance dropped: processing queue full")

	d.seq.MarkDropped(&models.PipelineRecord{
		SessionID:   d.sessionID,
		UtteranceID: u.ID,
		StartTs:     u.Start.UnixMilli(),
		EndTs:       u.End.UnixMilli(),
	})
}

// process runs one utterance through transcription, then terminology
// matching and translation in parallel, and submits the joined record.
func (d *Dispatcher) process(ctx context.Context, u segmenter.Utterance) {
	rec := &models.PipelineRecord{
		SessionID:   d.sessionID,
		UtteranceID: u.ID,
		StartTs:     u.Start.UnixMilli(),
		EndTs:       u.End.UnixMilli(),
	}

	start := time.Now()
	res, err := d.transcriber.Transcribe(ctx, u.PCM, u.SampleRate)
	d.metrics.RecordTranscription(d.transcriber.Provider(), err, time.Since(start).Seconds())
	u.PCM = nil // audio is not needed past this point

	if err != nil {
		rec.Markers.TranscriptionFailure = err.Error()
		d.log.Warn().Err(err).Uint64("utteranceId", u.ID).Msg("Transcription failed")
		d.seq.Submit(rec)
		return
	}
	if res.Text == "" {
		// The model heard no speech. Still one record per utterance.
		d.seq.Submit(rec)
		return
	}

	rec.Transcript = &models.TranscriptSegment{
		UtteranceID:      u.ID,
		Text:             res.Text,
		DetectedLanguage: res.Language,
		Confidence:       res.Confidence,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		mStart := time.Now()
		matches := d.matcher.Match(res.Text)
		d.metrics.RecordMatches(time.Since(mStart).Seconds(), countMatches(matches))
		rec.Matches = matches
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.translateInto(ctx, rec, res)
	}()
	wg.Wait()

	d.seq.Submit(rec)
}

func (d *Dispatcher) translateInto(ctx context.Context, rec *models.PipelineRecord, res transcribe.Result) {
	if res.Language != models.LangRussian && res.Language != models.LangEnglish {
		rec.Markers.TranslationFailure = "unknown source language"
		return
	}

	start := time.Now()
	out, err := d.translator.Translate(ctx, translate.Request{
		Text:   res.Text,
		Source: res.Language,
		Target: models.TargetFor(res.Language),
	})
	d.metrics.RecordTranslation(d.translator.Provider(), err, time.Since(start).Seconds())

	if err != nil {
		rec.Markers.TranslationFailure = err.Error()
		d.log.Warn().Err(err).Uint64("utteranceId", rec.UtteranceID).Msg("Translation failed")
		return
	}
	rec.Translation = &models.TranslationResult{
		UtteranceID:    rec.UtteranceID,
		SourceLanguage: res.Language,
		TargetLanguage: models.TargetFor(res.Language),
		TranslatedText: out.Text,
		AuditNotes:     out.AuditNotes,
	}
}

func countMatches(matches []models.TerminologyMatch) map[[2]string]int {
	if len(matches) == 0 {
		return nil
	}
	counts := make(map[[2]string]int, len(matches))
	for _, m := range matches {
		counts[[2]string{string(m.Category), string(m.Kind)}]++
	}
	return counts
}
