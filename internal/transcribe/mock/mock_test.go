package mock

import (
	"context"
	"errors"
	"testing"
	"time"

	"interpreter-verify-service/internal/models"
)

func TestMockCyclesScript(t *testing.T) {
	m := New(
		Response{Text: "ангина", Confidence: 0.9},
		Response{Text: "angina", Confidence: 0.8},
	)

	want := []struct {
		text string
		lang models.Language
	}{
		{"ангина", models.LangRussian},
		{"angina", models.LangEnglish},
		{"ангина", models.LangRussian},
	}
	for i, w := range want {
		got, err := m.Transcribe(context.Background(), nil, 16000)
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if got.Text != w.text || got.Language != w.lang {
			t.Errorf("call %d = (%q, %s), want (%q, %s)", i, got.Text, got.Language, w.text, w.lang)
		}
	}
	if m.Calls() != 3 {
		t.Errorf("Calls = %d, want 3", m.Calls())
	}
}

func TestMockScriptedError(t *testing.T) {
	boom := errors.New("model crash")
	m := New(Response{Err: boom})

	if _, err := m.Transcribe(context.Background(), nil, 16000); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

func TestMockHonorsContext(t *testing.T) {
	m := New()
	m.Latency = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := m.Transcribe(ctx, nil, 16000); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}
