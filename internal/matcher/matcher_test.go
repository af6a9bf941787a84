package matcher

import (
	"strings"
	"testing"

	"interpreter-verify-service/internal/lexicon"
	"interpreter-verify-service/internal/models"
)

func testStore(t *testing.T) *lexicon.Store {
	t.Helper()
	lex, err := lexicon.Embedded()
	if err != nil {
		t.Fatalf("embedded lexicon: %v", err)
	}
	return lexicon.NewStore(lex)
}

func storeFrom(t *testing.T, doc string) *lexicon.Store {
	t.Helper()
	lex, err := lexicon.Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("parse lexicon: %v", err)
	}
	return lexicon.NewStore(lex)
}

func TestMatch_ExactVerbatimTerm(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	matches := m.Match("У меня сильная ангина уже три дня")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	got := matches[0]
	if got.Kind != models.MatchExact {
		t.Errorf("expected exact match, got %s", got.Kind)
	}
	if got.Similarity != 1.0 {
		t.Errorf("expected similarity 1.0, got %f", got.Similarity)
	}
	if got.Category != models.CategoryFalseFriend {
		t.Errorf("expected false_friend, got %s", got.Category)
	}
	if got.Risk != models.RiskCritical {
		t.Errorf("expected critical, got %s", got.Risk)
	}
	if got.SourceText != "ангина" {
		t.Errorf("expected span 'ангина', got %q", got.SourceText)
	}
	if !strings.Contains(got.Guidance, "tonsillitis") {
		t.Errorf("expected guidance mentioning tonsillitis, got %q", got.Guidance)
	}
}

func TestMatch_OffsetsPointIntoSource(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	text := "Принимаю корвалол каждый вечер"
	matches := m.Match(text)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	got := matches[0]
	if text[got.SourceOffset:got.SourceOffset+got.SourceLength] != got.SourceText {
		t.Errorf("offsets do not point at the matched span")
	}
}

func TestMatch_SingleCharacterMisspelling(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	// "Корвалрл" for "Корвалол": one substitution over 8 runes.
	matches := m.Match("Пью Корвалрл от сердца")
	if len(matches) != 1 {
		t.Fatalf("expected 1 fuzzy match, got %d: %+v", len(matches), matches)
	}
	got := matches[0]
	if got.Kind != models.MatchFuzzy {
		t.Errorf("expected fuzzy match, got %s", got.Kind)
	}
	if got.MatchedTerm != "корвалол" {
		t.Errorf("expected корвалол, got %q", got.MatchedTerm)
	}
	if got.Similarity < DefaultConfig().FuzzyThreshold {
		t.Errorf("expected similarity >= threshold, got %f", got.Similarity)
	}
}

func TestMatch_MultiWordMedication(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	matches := m.Match("назначили ацетилсалициловую кислоту")
	// Inflected form: "ацетилсалициловую кислоту" vs the nominative
	// entry is two substitutions over 24 runes, well above threshold.
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].MatchedTerm != "ацетилсалициловая кислота" {
		t.Errorf("expected the two-word entry, got %q", matches[0].MatchedTerm)
	}
}

func TestMatch_EnglishAliasBidirectional(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	matches := m.Match("The patient says she has angina")
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d", len(matches))
	}
	if matches[0].Category != models.CategoryFalseFriend {
		t.Errorf("expected false_friend via English alias, got %s", matches[0].Category)
	}
}

func TestMatch_NoFalsePositivesOnPlainSpeech(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	for _, text := range []string{
		"",
		"как вы себя чувствуете сегодня",
		"please take a seat and wait for the doctor",
	} {
		if got := m.Match(text); len(got) != 0 {
			t.Errorf("expected no matches for %q, got %+v", text, got)
		}
	}
}

func TestMatch_OverlapCollapsesToLongest(t *testing.T) {
	// Synthetic lexicon: a two-word medication whose second word is
	// itself a false-friend entry. The contained single-word match must
	// be discarded.
	store := storeFrom(t, `{"version":"t","entries":[
		{"term":"blood pressure","category":"medication","risk":"moderate"},
		{"term":"pressure","category":"false_friend","risk":"low",
		 "literalMeaning":"pressure","trueMeaning":"stress"}]}`)
	m := New(store, DefaultConfig())

	matches := m.Match("her blood pressure is high")
	if len(matches) != 1 {
		t.Fatalf("expected 1 collapsed match, got %d: %+v", len(matches), matches)
	}
	if matches[0].MatchedTerm != "blood pressure" {
		t.Errorf("expected the longer medication match, got %q", matches[0].MatchedTerm)
	}
	if matches[0].Category != models.CategoryMedication {
		t.Errorf("expected medication priority, got %s", matches[0].Category)
	}
}

func TestMatch_FuzzyTieBreaksDeterministic(t *testing.T) {
	// Two keys equidistant from the misspelled span: the shorter one,
	// then the lexically smaller one, must win every time.
	store := storeFrom(t, `{"version":"t","entries":[
		{"term":"enalapril","category":"medication","risk":"low"},
		{"term":"enalaprik","category":"medication","risk":"low"}]}`)
	m := New(store, DefaultConfig())

	for i := 0; i < 10; i++ {
		matches := m.Match("taking enalaprin daily")
		if len(matches) != 1 {
			t.Fatalf("expected 1 match, got %d", len(matches))
		}
		if matches[0].MatchedTerm != "enalaprik" {
			t.Errorf("run %d: expected lexically smaller tie winner, got %q", i, matches[0].MatchedTerm)
		}
	}
}

func TestMatch_LengthFilterRejectsDistantCandidates(t *testing.T) {
	m := New(testStore(t), Config{
		FuzzyThreshold: 0.5, // permissive threshold; the length filter must still reject
		MaxNGram:       1,
		LengthRatio:    0.1,
		MinFuzzyRunes:  4,
	})

	if got := m.Match("но"); len(got) != 0 {
		t.Errorf("expected short token to be skipped, got %+v", got)
	}
}

func TestMatch_ShortTokensNeverFuzzy(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	// "энап" is 4 runes; 3-rune tokens must not fuzzy-match it.
	matches := m.Match("эта она три")
	for _, got := range matches {
		if got.Kind == models.MatchFuzzy {
			t.Errorf("unexpected fuzzy match on short token: %+v", got)
		}
	}
}

func TestMatch_OrderedByOffset(t *testing.T) {
	m := New(testStore(t), DefaultConfig())

	matches := m.Match("ангина лечится корвалол или анальгин")
	if len(matches) < 2 {
		t.Fatalf("expected multiple matches, got %d", len(matches))
	}
	for i := 1; i < len(matches); i++ {
		if matches[i].SourceOffset < matches[i-1].SourceOffset {
			t.Errorf("matches not ordered by offset: %+v", matches)
		}
	}
}
