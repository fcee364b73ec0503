package usecase

import (
	"context"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

// AnalysisReaderUseCase is the read model over persisted analysis records.
type AnalysisReaderUseCase struct {
	records ports.AnalysisStore
}

func NewAnalysisReaderUseCase(records ports.AnalysisStore) *AnalysisReaderUseCase {
	return &AnalysisReaderUseCase{records: records}
}

func (uc *AnalysisReaderUseCase) GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	return uc.records.GetByID(ctx, id)
}

func (uc *AnalysisReaderUseCase) Recent(ctx context.Context, userID string, limit int) ([]domain.RecordSummary, error) {
	return uc.records.ListRecent(ctx, userID, limit)
}
