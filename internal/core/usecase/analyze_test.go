package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
)

type fakeExtractor struct {
	text *domain.ExtractedText
	doc  *domain.Document
	err  error
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string, _ io.Reader) (*domain.ExtractedText, *domain.Document, error) {
	if f.err != nil {
		return nil, nil, f.err
	}
	return f.text, f.doc, nil
}

type fakeCleaner struct {
	report domain.CleaningReport
}

func (f *fakeCleaner) Clean(text string) (string, domain.CleaningReport) {
	return text, f.report
}

type fakeLLM struct {
	draft *domain.ProductDraft
	stats ports.ExtractionStats
	err   error
	got   ports.ExtractionRequest
}

func (f *fakeLLM) ExtractProduct(_ context.Context, req ports.ExtractionRequest) (*domain.ProductDraft, ports.ExtractionStats, error) {
	f.got = req
	if f.err != nil {
		return nil, f.stats, f.err
	}
	return f.draft, f.stats, nil
}

type fakeValidator struct {
	report domain.ValidationReport
}

func (f *fakeValidator) Validate(draft *domain.ProductDraft, _ string) (*domain.ProductDraft, domain.ValidationReport) {
	return draft, f.report
}

type fakeScorer struct {
	breakdown domain.ConfidenceBreakdown
}

func (f *fakeScorer) Score(_ *domain.ProductDraft, _ domain.ValidationReport, _ domain.CleaningReport, _ domain.ExtractedText) domain.ConfidenceBreakdown {
	return f.breakdown
}

type fakeStore struct {
	created   []*domain.AnalysisRecord
	createErr error
	byID      map[string]*domain.AnalysisRecord
}

func (f *fakeStore) Create(_ context.Context, record *domain.AnalysisRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, record)
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*domain.AnalysisRecord, error) {
	record, ok := f.byID[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrRecordNotFound, "get analysis record", errors.New(id))
	}
	return record, nil
}

func (f *fakeStore) ListRecent(_ context.Context, _ string, _ int) ([]domain.RecordSummary, error) {
	return nil, nil
}

type fakeQueue struct {
	published []*domain.AnalysisRecord
	err       error
}

func (f *fakeQueue) PublishPersistRetry(_ context.Context, record *domain.AnalysisRecord) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, record)
	return nil
}

func (f *fakeQueue) SubscribePersistRetry(_ context.Context, _ func(context.Context, *domain.AnalysisRecord) error) error {
	return nil
}

type fakeLearning struct {
	hints    domain.HintSet
	hintsErr error
	applyErr error
	applied  []domain.LearningFeedback
}

func (f *fakeLearning) Apply(_ context.Context, feedback domain.LearningFeedback) error {
	if f.applyErr != nil {
		return f.applyErr
	}
	f.applied = append(f.applied, feedback)
	return nil
}

func (f *fakeLearning) HintsFor(_ context.Context, _ string, _ domain.SourceFormat) (domain.HintSet, error) {
	return f.hints, f.hintsErr
}

func happyDraft() *domain.ProductDraft {
	draft := &domain.ProductDraft{
		BasicInfo: domain.BasicInfo{Name: "三相继电保护测试仪", Code: "A703", Category: "测量仪表"},
		Specifications: map[string]domain.Specification{
			"测试电压": {Value: "0-120", Unit: "V"},
		},
		Confidence: domain.DraftConfidence{BasicInfo: 0.9, Specifications: 0.9, Overall: 0.9},
	}
	draft.EnsureDefaults()
	return draft
}

func happyPipeline() (*fakeExtractor, *fakeCleaner, *fakeLLM, *fakeValidator, *fakeScorer, *fakeStore) {
	extractor := &fakeExtractor{
		text: &domain.ExtractedText{Text: "测试电压 0-120V", LengthChars: 600, LengthWords: 80, SourceFormat: domain.FormatPDF, Pages: 3},
		doc:  &domain.Document{ID: "doc-1", OriginalFilename: "A703.pdf", SizeBytes: 2048, Format: domain.FormatPDF},
	}
	cleaner := &fakeCleaner{report: domain.CleaningReport{OriginalLineCount: 40, RemovedLineCount: 4}}
	llm := &fakeLLM{draft: happyDraft(), stats: ports.ExtractionStats{PromptTokens: 100, CompletionTokens: 50}}
	validator := &fakeValidator{report: domain.ValidationReport{
		OriginalSpecsCount: 6, NoiseRemovedCount: 3, InvalidRemovedCount: 2, FinalSpecsCount: 1,
		DataQualityScore: 0.36,
	}}
	scorer := &fakeScorer{breakdown: domain.ConfidenceBreakdown{Overall: 0.87, Level: domain.LevelVeryHigh}}
	store := &fakeStore{}
	return extractor, cleaner, llm, validator, scorer, store
}

func TestAnalyzePersistsCompletedRecord(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	learning := &fakeLearning{hints: domain.HintSet{"basic_info.category": {"测量仪表"}}}

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store,
		AnalyzeOptions{Learning: learning})

	outcome, err := uc.Analyze(context.Background(), "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if outcome.PersistWarning {
		t.Error("unexpected persist warning")
	}
	if len(store.created) != 1 {
		t.Fatalf("created records = %d", len(store.created))
	}

	record := store.created[0]
	if record.Status != domain.AnalysisCompleted || !record.Success {
		t.Errorf("status = %s success = %v", record.Status, record.Success)
	}
	if record.FinalSpecsCount != 1 || record.NoiseRemovedCount != 3 || record.InvalidRemovedCount != 2 {
		t.Errorf("spec counts = %d/%d/%d", record.FinalSpecsCount, record.NoiseRemovedCount, record.InvalidRemovedCount)
	}
	if record.DocumentType != domain.FormatPDF || record.DocumentSize != 2048 {
		t.Errorf("document meta = %s/%d", record.DocumentType, record.DocumentSize)
	}
	if record.TextLength != 600 || record.WordCount != 80 {
		t.Errorf("text metrics = %d/%d", record.TextLength, record.WordCount)
	}
	if len(record.Warnings) != 0 {
		t.Errorf("warnings = %v", record.Warnings)
	}
	if record.AnalysisSummary == "" {
		t.Error("missing analysis summary")
	}
	if record.AnalysisDurationS < 0 || record.AnalysisDurationS > maxAnalysisDurationS {
		t.Errorf("duration = %v", record.AnalysisDurationS)
	}
	if llm.got.Hints["basic_info.category"] == nil {
		t.Error("hints not passed to the extractor")
	}
	if outcome.PromptTokens != 100 || outcome.CompletionTokens != 50 {
		t.Errorf("token stats = %d/%d", outcome.PromptTokens, outcome.CompletionTokens)
	}
}

func TestAnalyzeWarnsOnIncompleteBasicInfo(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	llm.draft.BasicInfo.Category = ""

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})
	outcome, err := uc.Analyze(context.Background(), "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	record := outcome.Record
	if !record.Success {
		t.Error("incomplete basic info must stay a success")
	}
	if len(record.Warnings) != 1 || record.Warnings[0] != domain.WarningIncompleteBasicInfo {
		t.Errorf("warnings = %v", record.Warnings)
	}
}

func TestAnalyzePersistFailureQueuesRetry(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	store.createErr = errors.New("connection refused")
	queue := &fakeQueue{}

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store,
		AnalyzeOptions{RetryQueue: queue})

	outcome, err := uc.Analyze(context.Background(), "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Analyze must still return the in-memory result: %v", err)
	}
	if !outcome.PersistWarning {
		t.Error("expected persist warning")
	}
	if len(queue.published) != 1 {
		t.Fatalf("retry publications = %d", len(queue.published))
	}
	if queue.published[0].ID != outcome.Record.ID {
		t.Error("queued record does not match the outcome")
	}
}

func TestAnalyzeLLMFailurePersistsFailedRecord(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	llm.err = domain.WrapError(domain.ErrProviderUnavailable, "extract product", errors.New("status 503"))
	llm.stats = ports.ExtractionStats{Retries: 1}

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})
	_, err := uc.Analyze(context.Background(), "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("created records = %d", len(store.created))
	}
	record := store.created[0]
	if record.Status != domain.AnalysisFailed || record.Success {
		t.Errorf("status = %s success = %v", record.Status, record.Success)
	}
	if !strings.Contains(record.ErrorMessage, "ProviderUnavailable") {
		t.Errorf("error message = %q", record.ErrorMessage)
	}
	if record.LLMRetries != 1 {
		t.Errorf("llm retries = %d", record.LLMRetries)
	}
	if record.DocumentType != domain.FormatPDF {
		t.Errorf("document type = %s", record.DocumentType)
	}
}

func TestAnalyzeUnsupportedFormatFailsFast(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	extractor.err = domain.WrapError(domain.ErrUnsupportedFormat, "resolve format", errors.New(`extension ".exe"`))

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})
	_, err := uc.Analyze(context.Background(), "u1", "virus.exe", "application/octet-stream", strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("err = %v", err)
	}
	if len(store.created) != 0 {
		t.Errorf("fail-fast error must not persist a record, got %d", len(store.created))
	}
}

func TestAnalyzeParseErrorPersistsDiagnostic(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	extractor.err = domain.WrapError(domain.ErrParse, "extract pdf", errors.New("malformed xref"))

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})
	_, err := uc.Analyze(context.Background(), "u1", "broken.pdf", "application/pdf", strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrParse) {
		t.Fatalf("err = %v", err)
	}
	if len(store.created) != 1 {
		t.Fatalf("created records = %d", len(store.created))
	}
	record := store.created[0]
	if record.Status != domain.AnalysisFailed {
		t.Errorf("status = %s", record.Status)
	}
	if record.DocumentType != domain.FormatPDF {
		t.Errorf("document type fallback = %s", record.DocumentType)
	}
}

func TestAnalyzeCancelledBeforeLLMSkipsPersistence(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})
	_, err := uc.Analyze(ctx, "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v", err)
	}
	if len(store.created) != 0 {
		t.Errorf("cancelled run persisted %d records", len(store.created))
	}
}

func TestAnalyzeRejectsMissingUser(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()
	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store, AnalyzeOptions{})

	_, err := uc.Analyze(context.Background(), "  ", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("err = %v", err)
	}
}

func TestAnalyzeDurationUsesInjectedClock(t *testing.T) {
	extractor, cleaner, llm, validator, scorer, store := happyPipeline()

	base := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		if calls == 1 {
			return base
		}
		return base.Add(2500 * time.Millisecond)
	}

	uc := NewAnalyzeDocumentUseCase(extractor, cleaner, llm, validator, scorer, store,
		AnalyzeOptions{Clock: clock})
	outcome, err := uc.Analyze(context.Background(), "u1", "A703.pdf", "application/pdf", strings.NewReader("data"))
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if outcome.Record.AnalysisDurationS != 2.5 {
		t.Errorf("duration = %v, want 2.5", outcome.Record.AnalysisDurationS)
	}
}
