package whisper

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/transcribe"
)

func TestTranscribeSendsWAVMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/audio/transcriptions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "large-v3" {
			t.Errorf("model = %q", got)
		}
		f, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer f.Close()
		header := make([]byte, 44)
		if _, err := io.ReadFull(f, header); err != nil {
			t.Fatalf("read header: %v", err)
		}
		if string(header[0:4]) != "RIFF" || string(header[8:12]) != "WAVE" {
			t.Errorf("not a WAV header: %q", header[:12])
		}
		if rate := binary.LittleEndian.Uint32(header[24:28]); rate != 16000 {
			t.Errorf("sample rate = %d, want 16000", rate)
		}

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"text":"у меня ангина","language":"ru"}`)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "large-v3"})
	got, err := tr.Transcribe(context.Background(), make([]byte, 960), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Text != "у меня ангина" {
		t.Errorf("Text = %q", got.Text)
	}
	if got.Language != models.LangRussian {
		t.Errorf("Language = %s, want ru", got.Language)
	}
}

func TestTranscribeServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "large-v3"})
	_, err := tr.Transcribe(context.Background(), make([]byte, 960), 16000)

	var te *transcribe.Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *transcribe.Error", err)
	}
	if te.Kind != "internal" || te.Provider != "whisper" {
		t.Errorf("error = %+v", te)
	}
}

func TestTranscribeUnreachable(t *testing.T) {
	tr := New(Config{BaseURL: "http://127.0.0.1:1", Model: "large-v3"})
	_, err := tr.Transcribe(context.Background(), make([]byte, 960), 16000)

	var te *transcribe.Error
	if !errors.As(err, &te) {
		t.Fatalf("err = %v, want *transcribe.Error", err)
	}
	if te.Kind != "unavailable" {
		t.Errorf("Kind = %q, want unavailable", te.Kind)
	}
}

func TestLanguageFallsBackToScript(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"text":"take two tablets daily","language":""}`)
	}))
	defer srv.Close()

	tr := New(Config{BaseURL: srv.URL, Model: "large-v3"})
	got, err := tr.Transcribe(context.Background(), make([]byte, 960), 16000)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got.Language != models.LangEnglish {
		t.Errorf("Language = %s, want en", got.Language)
	}
}
