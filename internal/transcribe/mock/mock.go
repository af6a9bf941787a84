// Package mock provides a scripted transcriber for development and
// tests. It needs no model, no network, and returns deterministic text.
package mock

import (
	"context"
	"sync"
	"time"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/transcribe"
)

// Response is one scripted transcription result.
type Response struct {
	Text       string
	Language   models.Language
	Confidence float64
	Err        error
}

// Transcriber replays a fixed script, one response per call, cycling
// when the script runs out. The zero-value script produces plausible
// Russian phrases so the pipeline runs end to end without a model.
type Transcriber struct {
	// Latency is slept before each response to imitate model time.
	Latency time.Duration

	mu     sync.Mutex
	script []Response
	next   int
	calls  int
}

// New creates a mock transcriber. With no responses it falls back to a
// built-in Russian script.
func New(script ...Response) *Transcriber {
	if len(script) == 0 {
		script = []Response{
			{Text: "у меня ангина и болит горло", Language: models.LangRussian, Confidence: 0.94},
			{Text: "я принимаю корвалол каждый вечер", Language: models.LangRussian, Confidence: 0.91},
			{Text: "the doctor prescribed amoxiclav twice a day", Language: models.LangEnglish, Confidence: 0.9},
		}
	}
	return &Transcriber{script: script}
}

// Transcribe returns the next scripted response.
func (m *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (transcribe.Result, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return transcribe.Result{}, &transcribe.Error{Provider: m.Provider(), Kind: "timeout", Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	r := m.script[m.next%len(m.script)]
	m.next++
	m.calls++
	m.mu.Unlock()

	if r.Err != nil {
		return transcribe.Result{}, r.Err
	}
	lang := r.Language
	if lang == "" {
		lang = transcribe.GuessLanguage(r.Text)
	}
	return transcribe.Result{Text: r.Text, Language: lang, Confidence: r.Confidence}, nil
}

// Provider implements transcribe.Transcriber.
func (m *Transcriber) Provider() string { return "mock" }

// Calls reports how many times Transcribe ran.
func (m *Transcriber) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
