// Package mock provides a deterministic translator for development and
// tests.
package mock

import (
	"context"
	"sync"
	"time"

	"interpreter-verify-service/internal/models"
	"interpreter-verify-service/internal/translate"
)

// Translator echoes a fixed mapping, or a marked-up copy of the input
// when the mapping has no entry.
type Translator struct {
	// Latency is slept before each response.
	Latency time.Duration
	// Err, when set, fails every call.
	Err error
	// Responses maps source text to translated text.
	Responses map[string]string

	mu    sync.Mutex
	calls int
}

// New creates a mock translator.
func New() *Translator {
	return &Translator{Responses: map[string]string{}}
}

// Translate implements translate.Translator.
func (m *Translator) Translate(ctx context.Context, req translate.Request) (translate.Result, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return translate.Result{}, &translate.Error{Provider: m.Provider(), Kind: "timeout", Err: ctx.Err()}
		}
	}

	m.mu.Lock()
	m.calls++
	m.mu.Unlock()

	if m.Err != nil {
		return translate.Result{}, m.Err
	}
	if out, ok := m.Responses[req.Text]; ok {
		return translate.Result{Text: out}, nil
	}
	return translate.Result{Text: "[" + string(models.TargetFor(req.Source)) + "] " + req.Text}, nil
}

// Provider implements translate.Translator.
func (m *Translator) Provider() string { return "mock" }

// Calls reports how many times Translate ran.
func (m *Translator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
