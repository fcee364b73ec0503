package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

const maxAnalysisDurationS = 24 * 3600

// AnalyzeDocumentUseCase runs the full extraction pipeline for one upload:
// extract, clean, LLM extraction, validation, scoring, persistence.
type AnalyzeDocumentUseCase struct {
	extractor ports.TextExtractor
	cleaner   ports.ContentCleaner
	llm       ports.ProductExtractor
	validator ports.SpecValidator
	scorer    ports.ConfidenceScorer
	records   ports.AnalysisStore

	learning   ports.LearningStore
	retryQueue ports.RetryQueue
	logger     *slog.Logger
	llmTimeout time.Duration
	now        func() time.Time
}

// AnalyzeOptions carries the optional collaborators.
type AnalyzeOptions struct {
	Learning   ports.LearningStore
	RetryQueue ports.RetryQueue
	Logger     *slog.Logger
	LLMTimeout time.Duration
	Clock      func() time.Time
}

func NewAnalyzeDocumentUseCase(
	extractor ports.TextExtractor,
	cleaner ports.ContentCleaner,
	llm ports.ProductExtractor,
	validator ports.SpecValidator,
	scorer ports.ConfidenceScorer,
	records ports.AnalysisStore,
	opts AnalyzeOptions,
) *AnalyzeDocumentUseCase {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.LLMTimeout <= 0 {
		opts.LLMTimeout = 120 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &AnalyzeDocumentUseCase{
		extractor:  extractor,
		cleaner:    cleaner,
		llm:        llm,
		validator:  validator,
		scorer:     scorer,
		records:    records,
		learning:   opts.Learning,
		retryQueue: opts.RetryQueue,
		logger:     opts.Logger,
		llmTimeout: opts.LLMTimeout,
		now:        opts.Clock,
	}
}

func (uc *AnalyzeDocumentUseCase) Analyze(ctx context.Context, userID, filename, contentType string, body io.Reader) (*domain.AnalysisOutcome, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("missing user id"))
	}
	if strings.TrimSpace(filename) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "analyze document", fmt.Errorf("missing filename"))
	}
	start := uc.now()

	extracted, doc, err := uc.extractor.Extract(ctx, filename, contentType, body)
	if err != nil {
		// Format and size rejections fail fast without a record; parse
		// failures leave an audit trail.
		if domain.IsKind(err, domain.ErrParse) {
			uc.persistFailure(ctx, uc.failedRecord(userID, filename, nil, nil, start, 0, err))
		}
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cleaned, cleaningReport := uc.cleaner.Clean(extracted.Text)
	hints := uc.hintsFor(ctx, filename, doc.Format)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// The provider call survives client disconnects; a cancelled request
	// discards the result without persisting anything.
	llmCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), uc.llmTimeout)
	draft, stats, llmErr := uc.llm.ExtractProduct(llmCtx, ports.ExtractionRequest{
		UserID:       userID,
		DocumentName: filename,
		Text:         cleaned,
		Hints:        hints,
	})
	cancel()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if llmErr != nil {
		uc.persistFailure(ctx, uc.failedRecord(userID, filename, doc, extracted, start, stats.Retries, llmErr))
		return nil, llmErr
	}

	validated, validation := uc.validator.Validate(draft, filename)
	breakdown := uc.scorer.Score(validated, validation, cleaningReport, *extracted)

	record := uc.completedRecord(userID, filename, doc, extracted, validated, validation, breakdown, start, stats.Retries)

	outcome := &domain.AnalysisOutcome{
		Record:           record,
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.CompletionTokens,
	}
	if err := uc.records.Create(ctx, record); err != nil {
		uc.logger.Error("record_persist_failed", "record_id", record.ID, "error", err)
		uc.queueRetry(ctx, record)
		outcome.PersistWarning = true
	}
	return outcome, nil
}

func (uc *AnalyzeDocumentUseCase) completedRecord(
	userID, filename string,
	doc *domain.Document,
	extracted *domain.ExtractedText,
	validated *domain.ProductDraft,
	validation domain.ValidationReport,
	breakdown domain.ConfidenceBreakdown,
	start time.Time,
	llmRetries int,
) *domain.AnalysisRecord {
	warnings := []string{}
	if !hasCompleteBasicInfo(validated) {
		warnings = append(warnings, domain.WarningIncompleteBasicInfo)
	}

	validationCopy := validation
	record := &domain.AnalysisRecord{
		ID:                      uuid.NewString(),
		DocumentName:            filename,
		DocumentType:            doc.Format,
		DocumentSize:            doc.SizeBytes,
		TextLength:              extracted.LengthChars,
		WordCount:               extracted.LengthWords,
		ExtractedData:           validated,
		ConfidenceScores:        &breakdown,
		UserID:                  userID,
		AnalysisDurationS:       uc.elapsedSeconds(start),
		Status:                  domain.AnalysisCompleted,
		Success:                 true,
		DataQualityScore:        validation.DataQualityScore,
		QualityValidationReport: &validationCopy,
		NoiseRemovedCount:       validation.NoiseRemovedCount,
		InvalidRemovedCount:     validation.InvalidRemovedCount,
		FinalSpecsCount:         validation.FinalSpecsCount,
		LLMRetries:              llmRetries,
		Warnings:                warnings,
		CreatedAt:               uc.now().UTC(),
	}
	record.AnalysisSummary = buildAnalysisSummary(record)
	return record
}

func (uc *AnalyzeDocumentUseCase) failedRecord(
	userID, filename string,
	doc *domain.Document,
	extracted *domain.ExtractedText,
	start time.Time,
	llmRetries int,
	cause error,
) *domain.AnalysisRecord {
	record := &domain.AnalysisRecord{
		ID:                uuid.NewString(),
		DocumentName:      filename,
		DocumentType:      formatForFilename(filename),
		UserID:            userID,
		AnalysisDurationS: uc.elapsedSeconds(start),
		Status:            domain.AnalysisFailed,
		Success:           false,
		ErrorMessage:      domain.ErrorCode(cause) + ": " + cause.Error(),
		LLMRetries:        llmRetries,
		Warnings:          []string{},
		CreatedAt:         uc.now().UTC(),
	}
	if doc != nil {
		record.DocumentType = doc.Format
		record.DocumentSize = doc.SizeBytes
	}
	if extracted != nil {
		record.TextLength = extracted.LengthChars
		record.WordCount = extracted.LengthWords
	}
	record.AnalysisSummary = buildAnalysisSummary(record)
	return record
}

// persistFailure is best-effort: a failed pipeline must never be masked by
// a failing audit write.
func (uc *AnalyzeDocumentUseCase) persistFailure(ctx context.Context, record *domain.AnalysisRecord) {
	if err := uc.records.Create(ctx, record); err != nil {
		uc.logger.Error("failed_record_persist_failed", "record_id", record.ID, "error", err)
		uc.queueRetry(ctx, record)
	}
}

func (uc *AnalyzeDocumentUseCase) queueRetry(ctx context.Context, record *domain.AnalysisRecord) {
	if uc.retryQueue == nil {
		return
	}
	if err := uc.retryQueue.PublishPersistRetry(ctx, record); err != nil {
		uc.logger.Error("persist_retry_enqueue_failed", "record_id", record.ID, "error", err)
	}
}

// hintsFor never fails the pipeline; a broken learning store only costs
// prompt quality.
func (uc *AnalyzeDocumentUseCase) hintsFor(ctx context.Context, filename string, format domain.SourceFormat) domain.HintSet {
	if uc.learning == nil {
		return nil
	}
	hints, err := uc.learning.HintsFor(ctx, filename, format)
	if err != nil {
		uc.logger.Warn("hints_lookup_failed", "document", filename, "error", err)
		return nil
	}
	return hints
}

func (uc *AnalyzeDocumentUseCase) elapsedSeconds(start time.Time) float64 {
	elapsed := uc.now().Sub(start).Round(time.Millisecond).Seconds()
	if elapsed < 0 {
		return 0
	}
	if elapsed > maxAnalysisDurationS {
		return maxAnalysisDurationS
	}
	return elapsed
}

func hasCompleteBasicInfo(draft *domain.ProductDraft) bool {
	return strings.TrimSpace(draft.BasicInfo.Name) != "" &&
		strings.TrimSpace(draft.BasicInfo.Code) != "" &&
		strings.TrimSpace(draft.BasicInfo.Category) != ""
}

func formatForFilename(filename string) domain.SourceFormat {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return domain.FormatPDF
	case ".doc", ".docx":
		return domain.FormatWord
	case ".xls", ".xlsx":
		return domain.FormatExcel
	default:
		return domain.FormatText
	}
}

// buildAnalysisSummary renders the one-line human summary stored on the
// record and surfaced in listings.
func buildAnalysisSummary(record *domain.AnalysisRecord) string {
	if record.Status == domain.AnalysisFailed {
		return fmt.Sprintf("分析失败: %s", record.ErrorMessage)
	}
	name := "未知产品"
	if record.ExtractedData != nil && record.ExtractedData.BasicInfo.Name != "" {
		name = record.ExtractedData.BasicInfo.Name
	}
	level := domain.LevelVeryLow
	overall := 0.0
	if record.ConfidenceScores != nil {
		level = record.ConfidenceScores.Level
		overall = record.ConfidenceScores.Overall
	}
	return fmt.Sprintf("%s: 提取 %d 项技术参数 (过滤 %d 项), 置信度 %.2f (%s)",
		name, record.FinalSpecsCount,
		record.NoiseRemovedCount+record.InvalidRemovedCount,
		overall, level)
}
