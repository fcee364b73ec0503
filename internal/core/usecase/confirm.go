package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

// ConfirmAnalysisUseCase turns a reviewed analysis record into a catalog
// product and feeds the user's corrections to the learning store.
type ConfirmAnalysisUseCase struct {
	records  ports.AnalysisStore
	products ports.ProductStore
	learning ports.LearningStore
	logger   *slog.Logger
	now      func() time.Time
}

func NewConfirmAnalysisUseCase(records ports.AnalysisStore, products ports.ProductStore, learning ports.LearningStore, logger *slog.Logger) *ConfirmAnalysisUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConfirmAnalysisUseCase{
		records:  records,
		products: products,
		learning: learning,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *ConfirmAnalysisUseCase) Confirm(ctx context.Context, recordID, userID string, finalData *domain.ProductDraft) (*domain.Product, error) {
	if strings.TrimSpace(recordID) == "" || finalData == nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm analysis", fmt.Errorf("missing record id or final data"))
	}
	if strings.TrimSpace(finalData.BasicInfo.Name) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "confirm analysis", fmt.Errorf("final data has no product name"))
	}

	record, err := uc.records.GetByID(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.CreatedProductID != "" {
		return nil, domain.WrapError(domain.ErrAlreadyMaterialized, "confirm analysis",
			fmt.Errorf("record %s already produced %s", recordID, record.CreatedProductID))
	}

	finalData.EnsureDefaults()
	modifications := diffDrafts(record.ExtractedData, finalData)

	product, err := uc.products.Materialize(ctx, record, finalData, modifications)
	if err != nil {
		return nil, err
	}

	uc.emitFeedback(ctx, record, userID, modifications)
	return product, nil
}

// emitFeedback is best-effort: a learning store outage must not undo a
// successful confirmation.
func (uc *ConfirmAnalysisUseCase) emitFeedback(ctx context.Context, record *domain.AnalysisRecord, userID string, modifications map[string]domain.FieldDiff) {
	if uc.learning == nil || len(modifications) == 0 {
		return
	}
	feedback := domain.LearningFeedback{
		ID:               uuid.NewString(),
		AnalysisRecordID: record.ID,
		UserID:           userID,
		DocumentType:     record.DocumentType,
		FieldDiffs:       modifications,
		CreatedAt:        uc.now().UTC(),
	}
	if err := uc.learning.Apply(ctx, feedback); err != nil {
		if domain.IsKind(err, domain.ErrFeedbackConflict) {
			uc.logger.Warn("feedback_conflict_discarded", "record_id", record.ID, "error", err)
			return
		}
		uc.logger.Error("feedback_apply_failed", "record_id", record.ID, "error", err)
	}
}

// diffDrafts computes the field-level modifications the user made during
// review, keyed by dotted path.
func diffDrafts(extracted, final *domain.ProductDraft) map[string]domain.FieldDiff {
	diffs := make(map[string]domain.FieldDiff)
	if final == nil {
		return diffs
	}
	if extracted == nil {
		extracted = &domain.ProductDraft{}
	}

	diffString(diffs, "basic_info.name", extracted.BasicInfo.Name, final.BasicInfo.Name)
	diffString(diffs, "basic_info.code", extracted.BasicInfo.Code, final.BasicInfo.Code)
	diffString(diffs, "basic_info.category", extracted.BasicInfo.Category, final.BasicInfo.Category)
	diffString(diffs, "basic_info.description", extracted.BasicInfo.Description, final.BasicInfo.Description)
	if extracted.BasicInfo.BasePrice != final.BasicInfo.BasePrice {
		diffs["basic_info.base_price"] = domain.FieldDiff{Before: extracted.BasicInfo.BasePrice, After: final.BasicInfo.BasePrice}
	}

	diffSpecifications(diffs, extracted.Specifications, final.Specifications)
	diffFeatures(diffs, extracted.Features, final.Features)
	return diffs
}

func diffString(diffs map[string]domain.FieldDiff, path, before, after string) {
	if before != after {
		diffs[path] = domain.FieldDiff{Before: before, After: after}
	}
}

func diffSpecifications(diffs map[string]domain.FieldDiff, before, after map[string]domain.Specification) {
	names := make(map[string]bool, len(before)+len(after))
	for name := range before {
		names[name] = true
	}
	for name := range after {
		names[name] = true
	}
	ordered := make([]string, 0, len(names))
	for name := range names {
		ordered = append(ordered, name)
	}
	sort.Strings(ordered)

	for _, name := range ordered {
		b, hadBefore := before[name]
		a, hasAfter := after[name]
		switch {
		case hadBefore && !hasAfter:
			diffs["specifications."+name] = domain.FieldDiff{Before: b, After: nil}
		case !hadBefore && hasAfter:
			diffs["specifications."+name] = domain.FieldDiff{Before: nil, After: a}
		default:
			diffString(diffs, "specifications."+name+".value", b.Value, a.Value)
			diffString(diffs, "specifications."+name+".unit", b.Unit, a.Unit)
			diffString(diffs, "specifications."+name+".description", b.Description, a.Description)
		}
	}
}

func diffFeatures(diffs map[string]domain.FieldDiff, before, after []domain.Feature) {
	n := len(before)
	if len(after) > n {
		n = len(after)
	}
	for i := 0; i < n; i++ {
		path := fmt.Sprintf("features[%d]", i)
		switch {
		case i >= len(after):
			diffs[path] = domain.FieldDiff{Before: before[i], After: nil}
		case i >= len(before):
			diffs[path] = domain.FieldDiff{Before: nil, After: after[i]}
		default:
			diffString(diffs, path+".title", before[i].Title, after[i].Title)
			diffString(diffs, path+".description", before[i].Description, after[i].Description)
		}
	}
}
