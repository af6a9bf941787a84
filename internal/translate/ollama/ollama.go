// Package ollama translates between Russian and English with a local
// LLM served by Ollama. All processing stays on the machine.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/observability/logging"
	"interpreter-verify-service/internal/translate"
)

const (
	promptRuToEn = "You are a professional medical interpreter translating Russian to English. Rules:\n" +
		"1. Translate accurately, preserving medical meaning.\n" +
		"2. For Russian drug names, add the US equivalent in parentheses if you know it. Example: Энап (Vasotec/enalapril).\n" +
		"3. For false friends, translate the CORRECT meaning. Example: ангина = tonsillitis, NOT angina pectoris.\n" +
		"4. Keep the translation natural and professional.\n" +
		"5. Output ONLY the English translation. No explanations, no notes, no preamble."

	promptEnToRu = "You are a professional medical interpreter translating English to Russian. Rules:\n" +
		"1. Translate accurately, preserving medical meaning.\n" +
		"2. For US drug names, add the Russian equivalent in parentheses if you know it. Example: Augmentin (Амоксиклав).\n" +
		"3. Use standard Russian medical terminology.\n" +
		"4. Keep the translation natural and professional.\n" +
		"5. Output ONLY the Russian translation. No explanations, no notes, no preamble."

	promptAudit = "You are a medical terminology auditor. Given a source text and its translation, " +
		"list any Russian-English false friends or drug name confusions in the pair. " +
		"Respond with a JSON array of objects with keys \"term\", \"type\" (false_friend or drug_warning), " +
		"\"severity\" (low, moderate, high or critical) and \"message\". Respond with [] when there is nothing to flag. " +
		"Output ONLY the JSON array."
)

// Config holds the Ollama client settings.
type Config struct {
	BaseURL string
	Model   string
	// Timeout bounds one chat round trip.
	Timeout time.Duration
	// Audit enables the second model pass that flags terminology
	// hazards in the finished translation.
	Audit bool
}

// DefaultConfig returns settings for a local Ollama daemon.
func DefaultConfig() Config {
	return Config{
		BaseURL: "http://localhost:11434",
		Model:   "qwen2.5:7b-instruct-q4_K_M",
		Timeout: 30 * time.Second,
	}
}

// Translator implements translate.Translator against the Ollama chat API.
type Translator struct {
	cfg    Config
	client *http.Client
	log    zerolog.Logger
}

// New creates an Ollama translator.
func New(cfg Config) *Translator {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Translator{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    logging.WithComponent("ollama"),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Stream   bool          `json:"stream"`
	Messages []chatMessage `json:"messages"`
	Options  chatOptions   `json:"options"`
}

type chatOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict"`
	TopP        float64 `json:"top_p"`
}

type chatResponse struct {
	Message chatMessage `json:"message"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Translate implements translate.Translator.
func (t *Translator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return translate.Result{}, nil
	}

	var system string
	switch req.Source {
	case models.LangRussian:
		system = promptRuToEn
	case models.LangEnglish:
		system = promptEnToRu
	default:
		return translate.Result{}, &translate.Error{
			Provider: t.Provider(),
			Kind:     "internal",
			Err:      fmt.Errorf("unsupported source language %q", req.Source),
		}
	}

	start := time.Now()
	out, err := t.chat(ctx, system, text)
	if err != nil {
		return translate.Result{}, err
	}
	translated := cleanOutput(out)

	t.log.Debug().
		Str("direction", fmt.Sprintf("%s->%s", req.Source, models.TargetFor(req.Source))).
		Dur("elapsed", time.Since(start)).
		Int("chars", len(translated)).
		Msg("Translation complete")

	res := translate.Result{Text: translated}
	if t.cfg.Audit {
		notes, err := t.audit(ctx, text, translated)
		if err != nil {
			// Audit is best effort: the translation stands on its own.
			t.log.Warn().Err(err).Msg("Terminology audit failed")
		} else {
			res.AuditNotes = notes
		}
	}
	return res, nil
}

// Provider implements translate.Translator.
func (t *Translator) Provider() string { return "ollama" }

// VerifyConnection checks that Ollama is running and the configured
// model is installed.
func (t *Translator) VerifyConnection(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return &translate.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return &translate.Error{Provider: t.Provider(), Kind: "unavailable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &translate.Error{
			Provider: t.Provider(),
			Kind:     "unavailable",
			Err:      fmt.Errorf("tags endpoint returned status %d", resp.StatusCode),
		}
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return &translate.Error{Provider: t.Provider(), Kind: "decode", Err: err}
	}
	for _, m := range tags.Models {
		if strings.Contains(m.Name, t.cfg.Model) || strings.Contains(t.cfg.Model, m.Name) {
			t.log.Info().Str("model", t.cfg.Model).Msg("Ollama connected")
			return nil
		}
	}
	return &translate.Error{
		Provider: t.Provider(),
		Kind:     "unavailable",
		Err:      fmt.Errorf("model %q not installed, run: ollama pull %s", t.cfg.Model, t.cfg.Model),
	}
}

// WarmUp sends a short throwaway translation so the model is resident
// before the first real utterance. The first request always pays model
// load time.
func (t *Translator) WarmUp(ctx context.Context) error {
	start := time.Now()
	_, err := t.Translate(ctx, translate.Request{Text: "Здравствуйте", Source: models.LangRussian})
	if err != nil {
		return err
	}
	t.log.Info().Dur("elapsed", time.Since(start)).Msg("Warm-up complete")
	return nil
}

func (t *Translator) chat(ctx context.Context, system, user string) (string, error) {
	payload := chatRequest{
		Model:  t.cfg.Model,
		Stream: false,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Options: chatOptions{Temperature: 0.1, NumPredict: 512, TopP: 0.9},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", &translate.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", &translate.Error{Provider: t.Provider(), Kind: "internal", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		kind := "unavailable"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			kind = "timeout"
		}
		return "", &translate.Error{Provider: t.Provider(), Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", &translate.Error{
			Provider: t.Provider(),
			Kind:     "internal",
			Err:      fmt.Errorf("status %d: %s", resp.StatusCode, bytes.TrimSpace(msg)),
		}
	}

	var cr chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return "", &translate.Error{Provider: t.Provider(), Kind: "decode", Err: err}
	}
	return strings.TrimSpace(cr.Message.Content), nil
}

// audit runs the terminology audit pass over a finished translation.
func (t *Translator) audit(ctx context.Context, source, translated string) ([]models.AuditNote, error) {
	user := fmt.Sprintf("Source: %s\nTranslation: %s", source, translated)
	out, err := t.chat(ctx, promptAudit, user)
	if err != nil {
		return nil, err
	}

	out = trimJSONArray(out)
	var notes []models.AuditNote
	if err := json.Unmarshal([]byte(out), &notes); err != nil {
		return nil, &translate.Error{Provider: t.Provider(), Kind: "decode", Err: err}
	}
	return notes, nil
}

// cleanOutput strips artifacts the model adds despite instructions.
func cleanOutput(text string) string {
	text = strings.TrimSpace(text)
	if len(text) >= 2 {
		if (text[0] == '"' && text[len(text)-1] == '"') ||
			(text[0] == '\'' && text[len(text)-1] == '\'') {
			text = text[1 : len(text)-1]
		}
	}

	preambles := []string{
		"Here is the translation:",
		"Here's the translation:",
		"Translation:",
		"Перевод:",
		"Вот перевод:",
	}
	lower := strings.ToLower(text)
	for _, p := range preambles {
		if strings.HasPrefix(lower, strings.ToLower(p)) {
			text = text[len(p):]
			break
		}
	}
	return strings.TrimSpace(text)
}

// trimJSONArray cuts the model's reply down to the outermost JSON
// array, tolerating code fences and commentary around it.
func trimJSONArray(s string) string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return "[]"
	}
	return s[start : end+1]
}
