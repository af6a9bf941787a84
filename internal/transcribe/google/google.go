// Package google provides a Google Cloud Speech-to-Text adapter. It is
// the one optional cloud provider; the default deployment stays fully
// local with the whisper adapter.
package google

import (
	"context"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/transcribe"
)

// Config holds the Google STT settings.
type Config struct {
	// LanguageCode is the primary recognition language.
	LanguageCode string
	// AlternativeLanguageCodes lets the recognizer pick the other
	// language of the session.
	AlternativeLanguageCodes []string
	// Timeout bounds one recognition round trip.
	Timeout time.Duration
}

// DefaultConfig returns bilingual Russian/English recognition settings.
func DefaultConfig() Config {
	return Config{
		LanguageCode:             "ru-RU",
		AlternativeLanguageCodes: []string{"en-US"},
		Timeout:                  30 * time.Second,
	}
}

// Transcriber implements transcribe.Transcriber using synchronous
// Google Cloud recognition, one request per utterance.
type Transcriber struct {
	cfg    Config
	client *speech.Client
}

// New creates a Google transcriber.
// Requires GOOGLE_APPLICATION_CREDENTIALS environment variable to be set.
func New(ctx context.Context, cfg Config) (*Transcriber, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, &transcribe.Error{Provider: "google", Kind: "unavailable", Err: err}
	}
	if cfg.LanguageCode == "" {
		cfg = DefaultConfig()
	}
	return &Transcriber{cfg: cfg, client: c}, nil
}

// Transcribe implements transcribe.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (transcribe.Result, error) {
	if t.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.cfg.Timeout)
		defer cancel()
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            int32(sampleRate),
			LanguageCode:               t.cfg.LanguageCode,
			AlternativeLanguageCodes:   t.cfg.AlternativeLanguageCodes,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: classify(err), Err: err}
	}

	best := pickBest(resp)
	if best == nil {
		return transcribe.Result{}, nil
	}
	lang := languageFromCode(best.languageCode)
	if lang == models.LangUnknown {
		lang = transcribe.GuessLanguage(best.text)
	}
	return transcribe.Result{Text: best.text, Language: lang, Confidence: best.confidence}, nil
}

// Provider implements transcribe.Transcriber.
func (t *Transcriber) Provider() string { return "google" }

// Close releases the underlying gRPC connection.
func (t *Transcriber) Close() error { return t.client.Close() }

type alternative struct {
	text         string
	confidence   float64
	languageCode string
}

func pickBest(resp *speechpb.RecognizeResponse) *alternative {
	var best *alternative
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if best == nil || float64(alt.Confidence) > best.confidence {
			best = &alternative{
				text:         alt.Transcript,
				confidence:   float64(alt.Confidence),
				languageCode: r.LanguageCode,
			}
		}
	}
	return best
}

func classify(err error) string {
	switch status.Code(err) {
	case codes.DeadlineExceeded, codes.Canceled:
		return "timeout"
	case codes.Unavailable, codes.ResourceExhausted:
		return "unavailable"
	case codes.InvalidArgument:
		return "decode"
	default:
		return "internal"
	}
}

func languageFromCode(code string) models.Language {
	switch code {
	case "ru-RU", "ru":
		return models.LangRussian
	case "en-US", "en":
		return models.LangEnglish
	default:
		return models.LangUnknown
	}
}
