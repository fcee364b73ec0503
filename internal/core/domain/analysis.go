package domain

import "time"

type RemovedSpec struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

// Removal reasons recorded in ValidationReport.RemovedSpecs.
const (
	RemovalNoisePattern       = "noise_pattern"
	RemovalNoTechnicalContent = "no_technical_content"
	RemovalDuplicateName      = "duplicate_parameter_name"
)

type Correction struct {
	From string `json:"from"`
	To   string `json:"to"`
	Rule string `json:"rule"`
}

// ValidationReport accounts for every specification entry the quality
// validator removed or rewrote. FinalSpecsCount + NoiseRemovedCount +
// InvalidRemovedCount always equals OriginalSpecsCount.
type ValidationReport struct {
	OriginalSpecsCount  int           `json:"original_specs_count"`
	NoiseRemovedCount   int           `json:"noise_removed_count"`
	InvalidRemovedCount int           `json:"invalid_removed_count"`
	FinalSpecsCount     int           `json:"final_specs_count"`
	RemovedSpecs        []RemovedSpec `json:"removed_specs"`
	Corrections         []Correction  `json:"corrections"`
	DataQualityScore    float64       `json:"data_quality_score"`
}

type ConfidenceLevel string

const (
	LevelVeryLow  ConfidenceLevel = "very_low"
	LevelLow      ConfidenceLevel = "low"
	LevelMedium   ConfidenceLevel = "medium"
	LevelHigh     ConfidenceLevel = "high"
	LevelVeryHigh ConfidenceLevel = "very_high"
)

// LevelForScore maps an overall confidence to its display band.
func LevelForScore(score float64) ConfidenceLevel {
	switch {
	case score < 0.3:
		return LevelVeryLow
	case score < 0.5:
		return LevelLow
	case score < 0.7:
		return LevelMedium
	case score < 0.85:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

type ConfidenceBreakdown struct {
	Completeness   float64         `json:"completeness"`
	Quality        float64         `json:"quality"`
	Format         float64         `json:"format"`
	BasicInfo      float64         `json:"basic_info"`
	Specifications float64         `json:"specifications"`
	Features       float64         `json:"features"`
	Overall        float64         `json:"overall"`
	Level          ConfidenceLevel `json:"level"`
}

type AnalysisStatus string

const (
	AnalysisCompleted AnalysisStatus = "completed"
	AnalysisFailed    AnalysisStatus = "failed"
)

// FieldDiff is a single before/after pair keyed by dotted field path.
type FieldDiff struct {
	Before any `json:"before"`
	After  any `json:"after"`
}

// AnalysisRecord is the persisted audit unit of one pipeline run,
// including failed runs.
type AnalysisRecord struct {
	ID                      string               `json:"id"`
	DocumentName            string               `json:"document_name"`
	DocumentType            SourceFormat         `json:"document_type"`
	DocumentSize            int64                `json:"document_size"`
	TextLength              int                  `json:"text_length"`
	WordCount               int                  `json:"word_count"`
	ExtractedData           *ProductDraft        `json:"extracted_data,omitempty"`
	ConfidenceScores        *ConfidenceBreakdown `json:"confidence_scores,omitempty"`
	AnalysisSummary         string               `json:"analysis_summary,omitempty"`
	UserModifications       map[string]FieldDiff `json:"user_modifications,omitempty"`
	FinalData               *ProductDraft        `json:"final_data,omitempty"`
	CreatedProductID        string               `json:"created_product_id,omitempty"`
	UserID                  string               `json:"user_id"`
	AnalysisDurationS       float64              `json:"analysis_duration_s"`
	Status                  AnalysisStatus       `json:"status"`
	Success                 bool                 `json:"success"`
	ErrorMessage            string               `json:"error_message,omitempty"`
	DataQualityScore        float64              `json:"data_quality_score"`
	QualityValidationReport *ValidationReport    `json:"quality_validation_report,omitempty"`
	NoiseRemovedCount       int                  `json:"noise_removed_count"`
	InvalidRemovedCount     int                  `json:"invalid_removed_count"`
	FinalSpecsCount         int                  `json:"final_specs_count"`
	LLMRetries              int                  `json:"llm_retries"`
	Warnings                []string             `json:"warnings"`
	CreatedAt               time.Time            `json:"created_at"`
}

// ProductInfoSummary is the compact product identity shown in listings.
type ProductInfoSummary struct {
	Name       string `json:"name"`
	Code       string `json:"code"`
	Category   string `json:"category"`
	SpecsCount int    `json:"specs_count"`
}

// RecordSummary is the listing projection of an AnalysisRecord.
type RecordSummary struct {
	ID                string             `json:"id"`
	DocumentName      string             `json:"document_name"`
	AnalysisDate      time.Time          `json:"analysis_date"`
	Success           bool               `json:"success"`
	ConfidenceOverall float64            `json:"confidence_overall"`
	Level             ConfidenceLevel    `json:"level"`
	ProductInfo       ProductInfoSummary `json:"product_info"`
	AnalysisDurationS float64            `json:"analysis_duration_s"`
}

// AnalysisOutcome is what the analyze operation hands back to transports.
// PersistWarning is set when the record could not be stored synchronously
// and a background retry was queued.
type AnalysisOutcome struct {
	Record         *AnalysisRecord `json:"record"`
	PersistWarning bool            `json:"persist_warning"`

	// Token usage of the extraction call, surfaced for metrics only.
	PromptTokens     int `json:"-"`
	CompletionTokens int `json:"-"`
}
