// Package matcher finds terminology alerts in transcript text by
// exact and fuzzy lookup against the current lexicon snapshot.
package matcher

import (
	"sort"
	"unicode"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"interpreter-verify-service/internal/lexicon"
	"interpreter-verify-service/internal/models"
)

// Config holds the matcher tunables.
type Config struct {
	// FuzzyThreshold is the minimum similarity for a fuzzy match.
	FuzzyThreshold float64
	// MaxNGram caps candidate span width in tokens. Drug names may be
	// multi-word ("ацетилсалициловая кислота").
	MaxNGram int
	// LengthRatio rejects fuzzy candidates whose rune length differs
	// from the span by more than this fraction of the longer one.
	LengthRatio float64
	// MinFuzzyRunes skips fuzzy matching for very short spans, which
	// would otherwise match half the lexicon.
	MinFuzzyRunes int
}

// DefaultConfig returns the default matcher tuning.
func DefaultConfig() Config {
	return Config{
		FuzzyThreshold: 0.82,
		MaxNGram:       3,
		LengthRatio:    0.34,
		MinFuzzyRunes:  4,
	}
}

// Matcher is safe for concurrent use: the lexicon snapshot is resolved
// once per Match call and is itself immutable.
type Matcher struct {
	store *lexicon.Store
	cfg   Config
}

// New creates a matcher over the given lexicon store.
func New(store *lexicon.Store, cfg Config) *Matcher {
	if cfg.MaxNGram <= 0 {
		cfg.MaxNGram = 1
	}
	return &Matcher{store: store, cfg: cfg}
}

// token is a word in the source text with its byte position.
type token struct {
	text string
	off  int
	end  int
}

// tokenize splits text into word tokens, keeping byte offsets into the
// original string. Hyphens and apostrophes are word-internal so that
// "но-шпа" stays one token.
func tokenize(text string) []token {
	var toks []token
	start := -1
	for i, r := range text {
		word := unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '\''
		if word && start < 0 {
			start = i
		}
		if !word && start >= 0 {
			toks = append(toks, token{text: text[start:i], off: start, end: i})
			start = -1
		}
	}
	if start >= 0 {
		toks = append(toks, token{text: text[start:], off: start, end: len(text)})
	}
	return toks
}

// Match returns terminology matches for text, ordered by source offset.
// Overlapping candidates collapse to the longest, highest-priority one.
func (m *Matcher) Match(text string) []models.TerminologyMatch {
	lex := m.store.Snapshot()
	toks := tokenize(text)
	if len(toks) == 0 {
		return nil
	}

	var candidates []models.TerminologyMatch
	for i := range toks {
		for n := 1; n <= m.cfg.MaxNGram && i+n <= len(toks); n++ {
			span := text[toks[i].off:toks[i+n-1].end]
			if match, ok := m.matchSpan(lex, span, toks[i].off); ok {
				candidates = append(candidates, match)
			}
		}
	}

	return resolveOverlaps(candidates)
}

func (m *Matcher) matchSpan(lex *lexicon.Lexicon, span string, off int) (models.TerminologyMatch, bool) {
	norm := lexicon.Normalize(span)
	if norm == "" {
		return models.TerminologyMatch{}, false
	}

	if e, ok := lex.ExactLookup(norm); ok {
		return toMatch(e, span, off, models.MatchExact, 1.0), true
	}

	if utf8.RuneCountInString(norm) < m.cfg.MinFuzzyRunes {
		return models.TerminologyMatch{}, false
	}

	key, sim := m.bestFuzzyKey(lex, norm)
	if key == "" {
		return models.TerminologyMatch{}, false
	}
	e, ok := lex.ExactLookup(key)
	if !ok {
		return models.TerminologyMatch{}, false
	}
	return toMatch(e, span, off, models.MatchFuzzy, sim), true
}

// bestFuzzyKey scans the length-filtered candidate set and returns the
// single highest-scoring lexicon key at or above the threshold. Ties
// break by shorter key, then lexical order, for determinism.
func (m *Matcher) bestFuzzyKey(lex *lexicon.Lexicon, norm string) (string, float64) {
	spanLen := utf8.RuneCountInString(norm)

	var bestKey string
	var bestSim float64
	for _, key := range lex.Keys() {
		keyLen := utf8.RuneCountInString(key)
		longer := spanLen
		if keyLen > longer {
			longer = keyLen
		}
		diff := spanLen - keyLen
		if diff < 0 {
			diff = -diff
		}
		if float64(diff) > m.cfg.LengthRatio*float64(longer) {
			continue
		}

		dist := levenshtein.ComputeDistance(norm, key)
		sim := 1.0 - float64(dist)/float64(longer)
		if sim < m.cfg.FuzzyThreshold {
			continue
		}
		if sim > bestSim {
			bestKey, bestSim = key, sim
			continue
		}
		if sim == bestSim && bestKey != "" {
			bl := utf8.RuneCountInString(bestKey)
			if keyLen < bl || (keyLen == bl && key < bestKey) {
				bestKey = key
			}
		}
	}
	return bestKey, bestSim
}

func toMatch(e *lexicon.Entry, span string, off int, kind models.MatchKind, sim float64) models.TerminologyMatch {
	return models.TerminologyMatch{
		SourceOffset: off,
		SourceLength: len(span),
		SourceText:   span,
		MatchedTerm:  e.Term,
		Kind:         kind,
		Similarity:   sim,
		Category:     e.Category,
		Risk:         e.Risk,
		Guidance:     e.GuidanceText(),
	}
}

// resolveOverlaps keeps, for every group of overlapping candidates, the
// longer and higher-category-priority match and discards candidates
// fully contained in an already kept span. A fuzzy candidate that
// merely pads an exact hit with neighboring tokens loses to the exact
// hit it contains.
func resolveOverlaps(cands []models.TerminologyMatch) []models.TerminologyMatch {
	if len(cands) <= 1 {
		return cands
	}

	ranked := make([]models.TerminologyMatch, 0, len(cands))
	for _, c := range cands {
		if c.Kind == models.MatchFuzzy && containsExact(cands, c) {
			continue
		}
		ranked = append(ranked, c)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].SourceLength != ranked[j].SourceLength {
			return ranked[i].SourceLength > ranked[j].SourceLength
		}
		if ranked[i].Category.Priority() != ranked[j].Category.Priority() {
			return ranked[i].Category.Priority() > ranked[j].Category.Priority()
		}
		return ranked[i].SourceOffset < ranked[j].SourceOffset
	})

	var kept []models.TerminologyMatch
	for _, c := range ranked {
		contained := false
		for _, k := range kept {
			if c.SourceOffset >= k.SourceOffset &&
				c.SourceOffset+c.SourceLength <= k.SourceOffset+k.SourceLength {
				contained = true
				break
			}
		}
		if !contained {
			kept = append(kept, c)
		}
	}

	sort.Slice(kept, func(i, j int) bool {
		if kept[i].SourceOffset != kept[j].SourceOffset {
			return kept[i].SourceOffset < kept[j].SourceOffset
		}
		return kept[i].SourceLength > kept[j].SourceLength
	})
	return kept
}

// containsExact reports whether fuzzy candidate c fully contains some
// exact candidate's span.
func containsExact(cands []models.TerminologyMatch, c models.TerminologyMatch) bool {
	for _, other := range cands {
		if other.Kind != models.MatchExact {
			continue
		}
		if other.SourceOffset >= c.SourceOffset &&
			other.SourceOffset+other.SourceLength <= c.SourceOffset+c.SourceLength {
			return true
		}
	}
	return false
}
