package ports

import (
	"context"
	"io"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// TextExtractor detects the document format, enforces size limits and pulls
// normalized text out of the uploaded bytes.
type TextExtractor interface {
	Extract(ctx context.Context, filename, contentType string, body io.Reader) (*domain.ExtractedText, *domain.Document, error)
}

// PageOCR recognizes text on a rasterized document page. Used as a fallback
// when a PDF page yields almost no embedded text.
type PageOCR interface {
	RecognizePage(ctx context.Context, raw []byte, page int) (string, error)
}

// ContentCleaner strips format noise from extracted text while protecting
// technical tokens. Cleaning is idempotent.
type ContentCleaner interface {
	Clean(text string) (string, domain.CleaningReport)
}

// ExtractionRequest is the input of one LLM extraction call.
type ExtractionRequest struct {
	UserID       string
	DocumentName string
	Text         string
	Hints        domain.HintSet
}

// ExtractionStats reports effort spent on the extraction call.
type ExtractionStats struct {
	Retries          int
	PromptTokens     int
	CompletionTokens int
}

// ProductExtractor turns cleaned text into a schema-complete ProductDraft.
type ProductExtractor interface {
	ExtractProduct(ctx context.Context, req ExtractionRequest) (*domain.ProductDraft, ExtractionStats, error)
}

// SpecValidator filters and repairs the draft's specification entries and
// attempts core-identity repair from the filename.
type SpecValidator interface {
	Validate(draft *domain.ProductDraft, documentName string) (*domain.ProductDraft, domain.ValidationReport)
}

// ConfidenceScorer combines structural signals with the model's
// self-reported confidence into an overall score and level.
type ConfidenceScorer interface {
	Score(draft *domain.ProductDraft, validation domain.ValidationReport, cleaning domain.CleaningReport, text domain.ExtractedText) domain.ConfidenceBreakdown
}

// AnalysisStore persists and reads analysis records.
type AnalysisStore interface {
	Create(ctx context.Context, record *domain.AnalysisRecord) error
	GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error)
	ListRecent(ctx context.Context, userID string, limit int) ([]domain.RecordSummary, error)
}

// ProductStore materializes products from confirmed analysis records.
// Materialize is transactional: the product insert and the record update
// either both land or neither does.
type ProductStore interface {
	Materialize(ctx context.Context, record *domain.AnalysisRecord, finalData *domain.ProductDraft, modifications map[string]domain.FieldDiff) (*domain.Product, error)
}

// LearningStore accumulates correction patterns and surfaces hints.
type LearningStore interface {
	Apply(ctx context.Context, feedback domain.LearningFeedback) error
	HintsFor(ctx context.Context, documentName string, documentType domain.SourceFormat) (domain.HintSet, error)
}

// RetryQueue hands failed record persists to the background worker.
type RetryQueue interface {
	PublishPersistRetry(ctx context.Context, record *domain.AnalysisRecord) error
	SubscribePersistRetry(ctx context.Context, handler func(context.Context, *domain.AnalysisRecord) error) error
}

// AnalysisQuota is the per-user admission gate in front of the extractor.
type AnalysisQuota interface {
	Allow(userID string) bool
}
