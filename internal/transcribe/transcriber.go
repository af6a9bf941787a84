// Package transcribe defines the speech-to-text contract shared by the
// provider adapters in its sub-packages.
package transcribe

import (
	"context"
	"fmt"
	"unicode"

	"interpreter-verify-service/internal/models"
)

// Result is the output of one transcription call.
type Result struct {
	Text       string
	Language   models.Language
	Confidence float64
}

// Transcriber converts one utterance of 16-bit LE mono PCM to text.
// Implementations are safe for concurrent use.
type Transcriber interface {
	// Transcribe blocks until text is available, the context ends, or
	// the provider fails. An empty Text with a nil error means the
	// provider heard no speech.
	Transcribe(ctx context.Context, pcm []byte, sampleRate int) (Result, error)
	// Provider returns the adapter name used in logs and metrics.
	Provider() string
}

// Error wraps a provider failure with enough context for metrics and
// degraded-record marking.
type Error struct {
	Provider string
	Kind     string // "timeout", "unavailable", "decode", "internal"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transcribe: %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// GuessLanguage classifies text as Russian or English by script. Mixed
// text follows the majority; text with no letters is unknown.
func GuessLanguage(text string) models.Language {
	var cyr, lat int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Cyrillic, r):
			cyr++
		case r < 128 && unicode.IsLetter(r):
			lat++
		}
	}
	switch {
	case cyr == 0 && lat == 0:
		return models.LangUnknown
	case cyr >= lat:
		return models.LangRussian
	default:
		return models.LangEnglish
	}
}
