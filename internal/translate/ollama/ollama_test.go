package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/translate"
)

func chatServer(t *testing.T, reply func(system, user string) string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("stream = true, want false")
		}
		if req.Options.Temperature != 0.1 || req.Options.NumPredict != 512 {
			t.Errorf("options = %+v", req.Options)
		}
		if len(req.Messages) != 2 {
			t.Fatalf("messages = %d, want 2", len(req.Messages))
		}
		out := reply(req.Messages[0].Content, req.Messages[1].Content)
		json.NewEncoder(w).Encode(chatResponse{Message: chatMessage{Role: "assistant", Content: out}})
	}))
}

func TestTranslateRussianToEnglish(t *testing.T) {
	srv := chatServer(t, func(system, user string) string {
		if !strings.Contains(system, "Russian to English") {
			t.Errorf("wrong system prompt for ru source")
		}
		if user != "У пациента высокое давление" {
			t.Errorf("user = %q", user)
		}
		return "The patient has high blood pressure"
	})
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "qwen2.5:7b-instruct-q4_K_M"})
	got, err := tr.Translate(context.Background(), translate.Request{
		Text:   "У пациента высокое давление",
		Source: models.LangRussian,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Text != "The patient has high blood pressure" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestTranslateEnglishUsesReversePrompt(t *testing.T) {
	srv := chatServer(t, func(system, user string) string {
		if !strings.Contains(system, "English to Russian") {
			t.Errorf("wrong system prompt for en source")
		}
		return "Принимайте по две таблетки в день"
	})
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "m"})
	got, err := tr.Translate(context.Background(), translate.Request{
		Text:   "Take two tablets daily",
		Source: models.LangEnglish,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Text != "Принимайте по две таблетки в день" {
		t.Errorf("Text = %q", got.Text)
	}
}

func TestTranslateUnknownLanguage(t *testing.T) {
	tr := New(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	_, err := tr.Translate(context.Background(), translate.Request{
		Text:   "hola",
		Source: models.LangUnknown,
	})

	var te *translate.Error
	if !errors.As(err, &te) || te.Kind != "internal" {
		t.Errorf("err = %v, want internal translate.Error", err)
	}
}

func TestTranslateEmptyText(t *testing.T) {
	tr := New(Config{BaseURL: "http://127.0.0.1:1", Model: "m"})
	got, err := tr.Translate(context.Background(), translate.Request{
		Text:   "   ",
		Source: models.LangRussian,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if got.Text != "" {
		t.Errorf("Text = %q, want empty", got.Text)
	}
}

func TestAuditNotesParsed(t *testing.T) {
	srv := chatServer(t, func(system, user string) string {
		if strings.Contains(system, "auditor") {
			return "```json\n[{\"term\":\"ангина\",\"type\":\"false_friend\",\"severity\":\"critical\",\"message\":\"tonsillitis, not angina pectoris\"}]\n```"
		}
		return "I have tonsillitis"
	})
	defer srv.Close()

	cfg := Config{BaseURL: srv.URL, Model: "m", Audit: true}
	tr := New(cfg)
	got, err := tr.Translate(context.Background(), translate.Request{
		Text:   "у меня ангина",
		Source: models.LangRussian,
	})
	if err != nil {
		t.Fatalf("Translate: %v", err)
	}
	if len(got.AuditNotes) != 1 {
		t.Fatalf("AuditNotes = %d, want 1", len(got.AuditNotes))
	}
	n := got.AuditNotes[0]
	if n.Term != "ангина" || n.Type != "false_friend" || n.Severity != "critical" {
		t.Errorf("note = %+v", n)
	}
}

func TestVerifyConnection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("path = %s", r.URL.Path)
		}
		io.WriteString(w, `{"models":[{"name":"qwen2.5:7b-instruct-q4_K_M"},{"name":"llama3:8b"}]}`)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "qwen2.5:7b-instruct-q4_K_M"})
	if err := tr.VerifyConnection(context.Background()); err != nil {
		t.Errorf("VerifyConnection: %v", err)
	}

	missing := New(Config{BaseURL: srv.URL, Model: "mistral:7b"})
	err := missing.VerifyConnection(context.Background())
	var te *translate.Error
	if !errors.As(err, &te) || te.Kind != "unavailable" {
		t.Errorf("err = %v, want unavailable translate.Error", err)
	}
}

func TestCleanOutput(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "The patient has tonsillitis", "The patient has tonsillitis"},
		{"quoted", `"The patient has tonsillitis"`, "The patient has tonsillitis"},
		{"preamble", "Translation: The patient has tonsillitis", "The patient has tonsillitis"},
		{"russian preamble", "Перевод: У пациента тонзиллит", "У пациента тонзиллит"},
		{"whitespace", "  text  ", "text"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := cleanOutput(tt.in); got != tt.want {
				t.Errorf("cleanOutput(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestTrimJSONArray(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`[]`, `[]`},
		{"```json\n[1]\n```", `[1]`},
		{"no array here", `[]`},
		{`note: [{"a":1}] done`, `[{"a":1}]`},
	}
	for _, tt := range tests {
		if got := trimJSONArray(tt.in); got != tt.want {
			t.Errorf("trimJSONArray(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
