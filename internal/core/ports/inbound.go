package ports

import (
	"context"
	"io"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

// DocumentAnalyzer is the inbound contract for running the extraction
// pipeline against an uploaded datasheet.
type DocumentAnalyzer interface {
	Analyze(ctx context.Context, userID, filename, contentType string, body io.Reader) (*domain.AnalysisOutcome, error)
}

// AnalysisReader is the inbound read model for analysis records.
type AnalysisReader interface {
	GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error)
	Recent(ctx context.Context, userID string, limit int) ([]domain.RecordSummary, error)
}

// AnalysisConfirmer materializes a confirmed record into a catalog product.
type AnalysisConfirmer interface {
	Confirm(ctx context.Context, recordID, userID string, finalData *domain.ProductDraft) (*domain.Product, error)
}

// FeedbackIntake accepts field-level correction feedback on a record.
type FeedbackIntake interface {
	Submit(ctx context.Context, feedback domain.LearningFeedback) error
}
