package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

// FeedbackUseCase accepts standalone field-correction feedback submitted
// outside the confirm flow.
type FeedbackUseCase struct {
	records  ports.AnalysisStore
	learning ports.LearningStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewFeedbackUseCase(records ports.AnalysisStore, learning ports.LearningStore, logger *slog.Logger) *FeedbackUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackUseCase{
		records:  records,
		learning: learning,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *FeedbackUseCase) Submit(ctx context.Context, feedback domain.LearningFeedback) error {
	if strings.TrimSpace(feedback.AnalysisRecordID) == "" {
		return domain.WrapError(domain.ErrInvalidInput, "submit feedback", fmt.Errorf("missing analysis record id"))
	}
	if len(feedback.FieldDiffs) == 0 {
		return domain.WrapError(domain.ErrInvalidInput, "submit feedback", fmt.Errorf("no field diffs"))
	}

	record, err := uc.records.GetByID(ctx, feedback.AnalysisRecordID)
	if err != nil {
		return err
	}

	if feedback.ID == "" {
		feedback.ID = uuid.NewString()
	}
	if feedback.DocumentType == "" {
		feedback.DocumentType = record.DocumentType
	}
	if feedback.CreatedAt.IsZero() {
		feedback.CreatedAt = uc.now().UTC()
	}

	if err := uc.learning.Apply(ctx, feedback); err != nil {
		// A contended pattern update drops that single observation.
		if domain.IsKind(err, domain.ErrFeedbackConflict) {
			uc.logger.Warn("feedback_conflict_discarded", "record_id", feedback.AnalysisRecordID, "error", err)
			return nil
		}
		return err
	}
	return nil
}
