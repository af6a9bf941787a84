// Package whisper adapts a local faster-whisper HTTP server to the
// transcribe contract. The server exposes an OpenAI-compatible
// /v1/audio/transcriptions endpoint and keeps all audio on the machine.
package whisper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/audio"
	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/transcribe"
)

// Config holds the whisper server settings.
type Config struct {
	// BaseURL of the faster-whisper server, e.g. http://127.0.0.1:9000.
	BaseURL string
	// Model name passed to the server, e.g. "large-v3".
	Model string
	// Timeout bounds one transcription round trip.
	Timeout time.Duration
}

// DefaultConfig returns settings for a local faster-whisper server.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://127.0.0.1:9000",
		Model:   "large-v3",
		Timeout: 30 * time.Second,
	}
}

// Transcriber posts WAV-wrapped utterances to the whisper server.
type Transcriber struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// New creates a whisper transcriber.
func New(cfg Config) *Transcriber {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Transcriber{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logging.WithComponent("whisper"),
	}
}

type response struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe implements transcribe.Transcriber.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []byte, sampleRate int) (transcribe.Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "utterance.wav")
	if err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	if err := audio.WriteWAV(part, pcm, sampleRate); err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	if err := mw.WriteField("model", t.cfg.Model); err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	if err := mw.WriteField("response_format", "verbose_json"); err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	if err := mw.Close(); err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}

	url := t.cfg.BaseURL + "/v1/audio/transcriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := t.client.Do(req)
	if err != nil {
		kind := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = "timeout"
		}
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return transcribe.Result{}, &transcribe.Error{
			Provider: t.Provider(),
			Kind:     "internal",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return transcribe.Result{}, &transcribe.Error{Provider: t.Provider(), Kind: "decode", Err: err}
	}

	t.log.Debug().Str("language", r.Language).Int("chars", len(r.Text)).Msg("Transcription complete")

	lang := languageFromCode(r.Language)
	if lang == models.LangUnknown {
		lang = transcribe.GuessLanguage(r.Text)
	}
	return transcribe.Result{Text: r.Text, Language: lang, Confidence: 1.0}, nil
}

// Provider implements transcribe.Transcriber.
func (t *Transcriber) Provider() string { return "whisper" }

func languageFromCode(code string) models.Language {
	switch code {
	case "ru", "russian":
		return models.LangRussian
	case "en", "english":
		return models.LangEnglish
	default:
		return models.LangUnknown
	}
}
