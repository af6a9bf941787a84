// Package models defines the data structures flowing through the pipeline.
package models

// Language is the detected language of a transcript segment.
type Language string

const (
	LangRussian Language = "ru"
	LangEnglish Language = "en"
	LangUnknown Language = "unknown"
)

// TargetFor returns the translation target for a source language.
// Unknown maps to unknown; the translator rejects it.
func TargetFor(src Language) Language {
	switch src {
	case LangRussian:
		return LangEnglish
	case LangEnglish:
		return LangRussian
	default:
		return LangUnknown
	}
}

// MatchKind distinguishes exact lexicon hits from approximate ones.
type MatchKind string

const (
	MatchExact MatchKind = "exact"
	MatchFuzzy MatchKind = "fuzzy"
)

// Category classifies a lexicon entry.
type Category string

const (
	CategoryMedication  Category = "medication"
	CategoryFalseFriend Category = "false_friend"
)

// Priority ranks categories for overlap resolution (higher wins).
func (c Category) Priority() int {
	switch c {
	case CategoryMedication:
		return 2
	case CategoryFalseFriend:
		return 1
	default:
		return 0
	}
}

// RiskLevel grades how dangerous a terminology confusion is.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskModerate RiskLevel = "moderate"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank returns an ordering value for risk comparison (higher = worse).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskModerate:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// TranscriptSegment is the transcription result for one utterance.
// Produced once by the transcriber and immutable thereafter.
type TranscriptSegment struct {
	UtteranceID      uint64   `json:"utteranceId"`
	Text             string   `json:"text"`
	DetectedLanguage Language `json:"detectedLanguage"`
	Confidence       float64  `json:"confidence"`
}

// TerminologyMatch is a single terminology alert found in a transcript.
type TerminologyMatch struct {
	SourceOffset int       `json:"sourceOffset"` // byte offset into transcript text
	SourceLength int       `json:"sourceLength"` // byte length of the matched span
	SourceText   string    `json:"sourceText"`   // span as it appeared in the transcript
	MatchedTerm  string    `json:"matchedTerm"`  // canonical lexicon term
	Kind         MatchKind `json:"kind"`
	Similarity   float64   `json:"similarity"` // 1.0 for exact
	Category     Category  `json:"category"`
	Risk         RiskLevel `json:"risk"`
	Guidance     string    `json:"guidance"`
}

// AuditNote is a terminology flag raised by the translation stage.
type AuditNote struct {
	Term     string `json:"term"`
	Type     string `json:"type"` // false_friend | drug_warning | unknown
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// TranslationResult is the translation output for one utterance.
type TranslationResult struct {
	UtteranceID    uint64      `json:"utteranceId"`
	SourceLanguage Language    `json:"sourceLanguage"`
	TargetLanguage Language    `json:"targetLanguage"`
	TranslatedText string      `json:"translatedText"`
	AuditNotes     []AuditNote `json:"auditNotes,omitempty"`
}

// RecordMarkers carries per-stage failure state as visible fields.
// Failures never surface as errors to the sink; a degraded record is
// still delivered.
type RecordMarkers struct {
	TranscriptionFailure string `json:"transcriptionFailure,omitempty"`
	TranslationFailure   string `json:"translationFailure,omitempty"`
	Cancelled            bool   `json:"cancelled,omitempty"`
	ReleasedOnTimeout    bool   `json:"releasedOnTimeout,omitempty"`
}

// Degraded reports whether any stage failed for this record.
func (m RecordMarkers) Degraded() bool {
	return m.TranscriptionFailure != "" || m.TranslationFailure != "" ||
		m.Cancelled || m.ReleasedOnTimeout
}

// PipelineRecord is the join of transcript, terminology matches and
// translation for one utterance - the unit delivered to the sink.
// Exactly one record exists per emitted utterance, delivered in
// utterance ID order.
type PipelineRecord struct {
	EventType   string             `json:"eventType"`
	SessionID   string             `json:"sessionId"`
	UtteranceID uint64             `json:"utteranceId"`
	StartTs     int64              `json:"startTs"` // capture time, unix millis
	EndTs       int64              `json:"endTs"`
	Transcript  *TranscriptSegment `json:"transcript,omitempty"`
	Matches     []TerminologyMatch `json:"matches,omitempty"`
	Translation *TranslationResult `json:"translation,omitempty"`
	Markers     RecordMarkers      `json:"markers"`
	Timestamp   int64              `json:"timestamp"` // delivery time, unix millis
}

// MaxRisk returns the highest risk level among the record's matches,
// or empty when there are none.
func (r *PipelineRecord) MaxRisk() RiskLevel {
	var max RiskLevel
	for _, m := range r.Matches {
		if m.Risk.Rank() > max.Rank() {
			max = m.Risk
		}
	}
	return max
}
