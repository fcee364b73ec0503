package domain

import (
	"strings"
	"time"
	"unicode"
)

// LearningFeedback is one user-correction event against an analysis record.
type LearningFeedback struct {
	ID               string               `json:"id"`
	AnalysisRecordID string               `json:"analysis_record_id"`
	UserID           string               `json:"user_id"`
	DocumentType     SourceFormat         `json:"document_type,omitempty"`
	FieldDiffs       map[string]FieldDiff `json:"field_diffs"`
	CreatedAt        time.Time            `json:"created_at"`
}

// LearningPattern is an aggregated (field, canonical value) observation.
// Frequency increments whenever feedback lands on the same canonical value.
type LearningPattern struct {
	ID           int64        `json:"id"`
	FieldPath    string       `json:"field_path"`
	PatternType  string       `json:"pattern_type"`
	PatternValue string       `json:"pattern_value"`
	Frequency    int          `json:"frequency"`
	LastSeen     time.Time    `json:"last_seen"`
	UserID       string       `json:"user_id,omitempty"`
	DocumentType SourceFormat `json:"document_type,omitempty"`
}

// HintSet maps field paths to ranked correction suggestions consumed by the
// extractor prompt. Hints bias the model; they never override validation.
type HintSet map[string][]string

// CanonicalPatternValue lower-cases a corrected string value and strips
// punctuation so equivalent corrections aggregate into one pattern.
func CanonicalPatternValue(value string) string {
	lowered := strings.ToLower(strings.TrimSpace(value))
	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
