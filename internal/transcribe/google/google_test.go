package google

import (
	"errors"
	"testing"

	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"interpreter-verify-service/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"deadline", status.Error(codes.DeadlineExceeded, "deadline"), "timeout"},
		{"canceled", status.Error(codes.Canceled, "canceled"), "timeout"},
		{"unavailable", status.Error(codes.Unavailable, "down"), "unavailable"},
		{"quota", status.Error(codes.ResourceExhausted, "quota"), "unavailable"},
		{"bad audio", status.Error(codes.InvalidArgument, "bad encoding"), "decode"},
		{"other", errors.New("plain error"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.err); got != tt.want {
				t.Errorf("classify() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLanguageFromCode(t *testing.T) {
	tests := []struct {
		code string
		want models.Language
	}{
		{"ru-RU", models.LangRussian},
		{"en-US", models.LangEnglish},
		{"de-DE", models.LangUnknown},
		{"", models.LangUnknown},
	}
	for _, tt := range tests {
		if got := languageFromCode(tt.code); got != tt.want {
			t.Errorf("languageFromCode(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestPickBest(t *testing.T) {
	resp := &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{
					{Transcript: "у меня ангина", Confidence: 0.72},
				},
				LanguageCode: "ru-RU",
			},
			{
				Alternatives: []*speechpb.SpeechRecognitionAlternative{
					{Transcript: "I have angina", Confidence: 0.91},
				},
				LanguageCode: "en-US",
			},
			{Alternatives: nil},
		},
	}

	best := pickBest(resp)
	if best == nil {
		t.Fatal("pickBest returned nil")
	}
	if best.text != "I have angina" || best.languageCode != "en-US" {
		t.Errorf("best = %+v", best)
	}

	if got := pickBest(&speechpb.RecognizeResponse{}); got != nil {
		t.Errorf("empty response: best = %+v, want nil", got)
	}
}
