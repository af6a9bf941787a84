package lexicon

import (
	_ "embed"
	"strings"
	"sync/atomic"
)

//go:embed lexicon.json
var embedded []byte

// Embedded parses the dataset compiled into the binary. Used when no
// lexicon path is configured.
func Embedded() (*Lexicon, error) {
	lex, err := parse(strings.NewReader(string(embedded)), "embedded")
	if err != nil {
		return nil, err
	}
	return lex, nil
}

// Store holds the current lexicon snapshot behind a single atomically
// swapped reference. In-flight lookups keep using the snapshot they
// started with; a swap is visible to subsequent Snapshot calls only.
type Store struct {
	ptr atomic.Pointer[Lexicon]
}

// NewStore creates a store with an initial snapshot.
func NewStore(l *Lexicon) *Store {
	s := &Store{}
	s.ptr.Store(l)
	return s
}

// Snapshot returns the current lexicon.
func (s *Store) Snapshot() *Lexicon {
	return s.ptr.Load()
}

// Swap replaces the current lexicon with a new immutable instance.
func (s *Store) Swap(l *Lexicon) {
	s.ptr.Store(l)
}
