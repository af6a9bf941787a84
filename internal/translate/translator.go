// Package translate defines the translation contract shared by the
// provider adapters in its sub-packages.
package translate

import (
	"context"
	"fmt"

	"interpreter-verify-service/internal/models"
)

// Request is one translation call. Target is derived from Source when
// left empty.
type Request struct {
	Text   string
	Source models.Language
	Target models.Language
}

// Result is the translation output, optionally with terminology notes
// raised by the model's audit pass.
type Result struct {
	Text       string
	AuditNotes []models.AuditNote
}

// Translator translates between Russian and English. Implementations
// are safe for concurrent use.
type Translator interface {
	Translate(ctx context.Context, req Request) (Result, error)
	// Provider returns the adapter name used in logs and metrics.
	Provider() string
}

// Verifier is implemented by adapters that can check their backing
// service before the session starts.
type Verifier interface {
	// VerifyConnection confirms the backend is reachable and the model
	// is available.
	VerifyConnection(ctx context.Context) error
	// WarmUp issues a throwaway request so the first real utterance
	// does not pay model load time.
	WarmUp(ctx context.Context) error
}

// Error wraps a provider failure for metrics and degraded-record
// marking.
type Error struct {
	Provider string
	Kind     string // "timeout", "unavailable", "decode", "internal"
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("translate: %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
