package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

const (
	defaultRecentLimit = 10
	maxRecentLimit     = 50
)

func (r *AnalysisRepository) Create(ctx context.Context, record *domain.AnalysisRecord) error {
	extracted, err := marshalNullable(record.ExtractedData)
	if err != nil {
		return fmt.Errorf("marshal extracted data: %w", err)
	}
	confidence, err := marshalNullable(record.ConfidenceScores)
	if err != nil {
		return fmt.Errorf("marshal confidence scores: %w", err)
	}
	modifications, err := marshalNullable(record.UserModifications)
	if err != nil {
		return fmt.Errorf("marshal user modifications: %w", err)
	}
	finalData, err := marshalNullable(record.FinalData)
	if err != nil {
		return fmt.Errorf("marshal final data: %w", err)
	}
	validation, err := marshalNullable(record.QualityValidationReport)
	if err != nil {
		return fmt.Errorf("marshal validation report: %w", err)
	}
	warnings := record.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	warningsJSON, err := json.Marshal(warnings)
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO analysis_records (
	id, user_id, document_name, document_type, document_size, text_length, word_count,
	extracted_data, confidence_scores, analysis_summary, user_modifications, final_data,
	created_product_id, analysis_duration_s, status, success, error_message,
	data_quality_score, quality_validation_report, noise_removed_count,
	invalid_removed_count, final_specs_count, llm_retries, warnings, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)
`,
		record.ID, record.UserID, record.DocumentName, string(record.DocumentType),
		record.DocumentSize, record.TextLength, record.WordCount,
		extracted, confidence, record.AnalysisSummary, modifications, finalData,
		nullableText(record.CreatedProductID), record.AnalysisDurationS, string(record.Status),
		record.Success, record.ErrorMessage, record.DataQualityScore, validation,
		record.NoiseRemovedCount, record.InvalidRemovedCount, record.FinalSpecsCount,
		record.LLMRetries, warningsJSON, record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert analysis record: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) GetByID(ctx context.Context, id string) (*domain.AnalysisRecord, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, document_name, document_type, document_size, text_length, word_count,
	extracted_data, confidence_scores, analysis_summary, user_modifications, final_data,
	created_product_id, analysis_duration_s, status, success, error_message,
	data_quality_score, quality_validation_report, noise_removed_count,
	invalid_removed_count, final_specs_count, llm_retries, warnings, created_at
FROM analysis_records
WHERE id = $1
`, id)

	record, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrRecordNotFound, "get analysis record", fmt.Errorf("id %s", id))
		}
		return nil, err
	}
	return record, nil
}

func (r *AnalysisRepository) ListRecent(ctx context.Context, userID string, limit int) ([]domain.RecordSummary, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, document_name, created_at, success, confidence_scores,
	COALESCE(final_data, extracted_data), final_specs_count, analysis_duration_s
FROM analysis_records
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent records: %w", err)
	}
	defer rows.Close()

	summaries := make([]domain.RecordSummary, 0, limit)
	for rows.Next() {
		var (
			s             domain.RecordSummary
			confidenceRaw []byte
			draftRaw      []byte
		)
		if err := rows.Scan(&s.ID, &s.DocumentName, &s.AnalysisDate, &s.Success,
			&confidenceRaw, &draftRaw, &s.ProductInfo.SpecsCount, &s.AnalysisDurationS); err != nil {
			return nil, fmt.Errorf("scan record summary: %w", err)
		}

		if len(confidenceRaw) > 0 {
			var breakdown domain.ConfidenceBreakdown
			if err := json.Unmarshal(confidenceRaw, &breakdown); err == nil {
				s.ConfidenceOverall = breakdown.Overall
				s.Level = breakdown.Level
			}
		}
		if s.Level == "" {
			s.Level = domain.LevelForScore(s.ConfidenceOverall)
		}
		if len(draftRaw) > 0 {
			var draft domain.ProductDraft
			if err := json.Unmarshal(draftRaw, &draft); err == nil {
				s.ProductInfo.Name = draft.BasicInfo.Name
				s.ProductInfo.Code = draft.BasicInfo.Code
				s.ProductInfo.Category = draft.BasicInfo.Category
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate record summaries: %w", err)
	}
	return summaries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.AnalysisRecord, error) {
	var (
		record           domain.AnalysisRecord
		documentType     string
		status           string
		extractedRaw     []byte
		confidenceRaw    []byte
		modificationsRaw []byte
		finalRaw         []byte
		validationRaw    []byte
		warningsRaw      []byte
		productID        sql.NullString
	)

	err := row.Scan(
		&record.ID, &record.UserID, &record.DocumentName, &documentType,
		&record.DocumentSize, &record.TextLength, &record.WordCount,
		&extractedRaw, &confidenceRaw, &record.AnalysisSummary, &modificationsRaw, &finalRaw,
		&productID, &record.AnalysisDurationS, &status, &record.Success, &record.ErrorMessage,
		&record.DataQualityScore, &validationRaw, &record.NoiseRemovedCount,
		&record.InvalidRemovedCount, &record.FinalSpecsCount, &record.LLMRetries,
		&warningsRaw, &record.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.DocumentType = domain.SourceFormat(documentType)
	record.Status = domain.AnalysisStatus(status)
	record.CreatedProductID = productID.String

	if err := unmarshalNullable(extractedRaw, &record.ExtractedData); err != nil {
		return nil, fmt.Errorf("unmarshal extracted data: %w", err)
	}
	if err := unmarshalNullable(confidenceRaw, &record.ConfidenceScores); err != nil {
		return nil, fmt.Errorf("unmarshal confidence scores: %w", err)
	}
	if len(modificationsRaw) > 0 {
		if err := json.Unmarshal(modificationsRaw, &record.UserModifications); err != nil {
			return nil, fmt.Errorf("unmarshal user modifications: %w", err)
		}
	}
	if err := unmarshalNullable(finalRaw, &record.FinalData); err != nil {
		return nil, fmt.Errorf("unmarshal final data: %w", err)
	}
	if err := unmarshalNullable(validationRaw, &record.QualityValidationReport); err != nil {
		return nil, fmt.Errorf("unmarshal validation report: %w", err)
	}
	if len(warningsRaw) > 0 {
		if err := json.Unmarshal(warningsRaw, &record.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}
	return &record, nil
}

func marshalNullable(v any) (any, error) {
	if isNilValue(v) {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func isNilValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case *domain.ProductDraft:
		return t == nil
	case *domain.ConfidenceBreakdown:
		return t == nil
	case *domain.ValidationReport:
		return t == nil
	case map[string]domain.FieldDiff:
		return t == nil
	}
	return false
}

func unmarshalNullable[T any](raw []byte, out **T) error {
	if len(raw) == 0 {
		return nil
	}
	var value T
	if err := json.Unmarshal(raw, &value); err != nil {
		return err
	}
	*out = &value
	return nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
