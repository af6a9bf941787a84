// Package lexicon loads and indexes the terminology/false-friend
// dataset. A Lexicon is immutable after load; reloads build a fresh
// instance and swap it atomically through a Store.
package lexicon

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"interpreter-verify-service/internal/models"
)

// Entry is one lexicon term with its risk metadata.
type Entry struct {
	Term     string           `json:"term"`
	Lang     models.Language  `json:"lang"`
	Category models.Category  `json:"category"`
	Risk     models.RiskLevel `json:"risk"`
	// Cross-language equivalents: the Russian and US names for the
	// same medication, where they exist.
	RussianEquivalent string   `json:"ru,omitempty"`
	USEquivalent      string   `json:"en,omitempty"`
	Aliases           []string `json:"aliases,omitempty"`
	Guidance          string   `json:"guidance,omitempty"`
	// False friends only: what the term looks like it means to a
	// listener of the other language, and what it actually means.
	LiteralMeaning string `json:"literalMeaning,omitempty"`
	TrueMeaning    string `json:"trueMeaning,omitempty"`
}

// GuidanceText composes the alert text shown to the interpreter.
// False-friend entries always surface both the look-alike meaning and
// the true clinical meaning.
func (e *Entry) GuidanceText() string {
	if e.Category == models.CategoryFalseFriend && e.TrueMeaning != "" {
		note := fmt.Sprintf("%q means %s, not %s", e.Term, e.TrueMeaning, e.LiteralMeaning)
		if e.Guidance != "" {
			return note + ". " + e.Guidance
		}
		return note
	}
	return e.Guidance
}

// LoadError reports a lexicon that cannot be used. It is fatal at
// startup: the session cannot begin without a valid lexicon.
type LoadError struct {
	Source string // file path or "embedded"
	Entry  int    // index of the offending entry, -1 when not entry-specific
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Entry >= 0 {
		return fmt.Sprintf("lexicon %s: entry %d: %s", e.Source, e.Entry, e.Reason)
	}
	return fmt.Sprintf("lexicon %s: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error { return e.Err }

// file is the on-disk schema. It round-trips through Export without loss.
type file struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Lexicon is an immutable, versioned index over the dataset. Safe for
// concurrent use without locking.
type Lexicon struct {
	version string
	entries []Entry
	index   map[string]*Entry
	keys    []string // normalized keys, sorted, for fuzzy candidate scans
}

// stripMarks removes combining marks: Russian stress marks and Latin
// diacritics both fold away under NFD + Mn removal.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds text to its canonical lookup form: lowercase,
// combining marks stripped, ё folded to е, whitespace collapsed.
// Deterministic and idempotent.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = strings.ReplaceAll(folded, "ё", "е")
	return strings.Join(strings.Fields(folded), " ")
}

// Load reads and validates a lexicon file.
func Load(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Entry: -1, Reason: "cannot open", Err: err}
	}
	defer f.Close()
	return parse(f, path)
}

// Parse reads and validates a lexicon from r.
func Parse(r io.Reader) (*Lexicon, error) {
	return parse(r, "stream")
}

func parse(r io.Reader, source string) (*Lexicon, error) {
	var doc file
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return nil, &LoadError{Source: source, Entry: -1, Reason: "malformed JSON", Err: err}
	}
	if len(doc.Entries) == 0 {
		return nil, &LoadError{Source: source, Entry: -1, Reason: "no entries"}
	}

	lex := &Lexicon{
		version: doc.Version,
		entries: doc.Entries,
		index:   make(map[string]*Entry, len(doc.Entries)*2),
	}

	// Track (key, category) pairs: the same normalized key may exist in
	// different categories, but a duplicate within one category is a
	// dataset defect.
	seen := make(map[string]models.Category)

	for i := range lex.entries {
		e := &lex.entries[i]
		if err := validateEntry(e, i, source); err != nil {
			return nil, err
		}
		for _, key := range entryKeys(e) {
			if key == "" {
				return nil, &LoadError{Source: source, Entry: i, Reason: "term normalizes to empty string"}
			}
			if cat, dup := seen[key]; dup && cat == e.Category {
				return nil, &LoadError{Source: source, Entry: i,
					Reason: fmt.Sprintf("duplicate normalized key %q in category %s", key, e.Category)}
			}
			seen[key] = e.Category
			if prev, ok := lex.index[key]; !ok || e.Category.Priority() > prev.Category.Priority() {
				lex.index[key] = e
			}
		}
	}

	lex.keys = make([]string, 0, len(lex.index))
	for k := range lex.index {
		lex.keys = append(lex.keys, k)
	}
	sort.Strings(lex.keys)

	return lex, nil
}

func validateEntry(e *Entry, i int, source string) error {
	if strings.TrimSpace(e.Term) == "" {
		return &LoadError{Source: source, Entry: i, Reason: "empty term"}
	}
	switch e.Category {
	case models.CategoryMedication, models.CategoryFalseFriend:
	default:
		return &LoadError{Source: source, Entry: i, Reason: fmt.Sprintf("unknown category %q", e.Category)}
	}
	switch e.Risk {
	case models.RiskLow, models.RiskModerate, models.RiskHigh, models.RiskCritical:
	default:
		return &LoadError{Source: source, Entry: i, Reason: fmt.Sprintf("unknown risk level %q", e.Risk)}
	}
	if e.Category == models.CategoryFalseFriend && (e.TrueMeaning == "" || e.LiteralMeaning == "") {
		return &LoadError{Source: source, Entry: i,
			Reason: "false_friend entry missing literalMeaning/trueMeaning"}
	}
	return nil
}

func entryKeys(e *Entry) []string {
	keys := []string{Normalize(e.Term)}
	for _, a := range e.Aliases {
		keys = append(keys, Normalize(a))
	}
	return keys
}

// Version returns the dataset version string.
func (l *Lexicon) Version() string { return l.version }

// Len returns the number of entries.
func (l *Lexicon) Len() int { return len(l.entries) }

// ExactLookup returns the entry indexed under the normalized form of
// term. When the same key exists in multiple categories the
// higher-priority category wins.
func (l *Lexicon) ExactLookup(term string) (*Entry, bool) {
	e, ok := l.index[Normalize(term)]
	return e, ok
}

// Keys returns all normalized index keys in sorted order. The slice is
// shared; callers must not modify it.
func (l *Lexicon) Keys() []string { return l.keys }

// Export writes the dataset back out in its load schema.
func (l *Lexicon) Export(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(file{Version: l.version, Entries: l.entries})
}
