package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/electroquote/cpq-backend/internal/core/domain"
)

type fakeAnalyzer struct {
	outcome *domain.AnalysisOutcome
	err     error
	gotUser string
	gotName string
}

func (f *fakeAnalyzer) Analyze(_ context.Context, userID, filename, _ string, _ io.Reader) (*domain.AnalysisOutcome, error) {
	f.gotUser = userID
	f.gotName = filename
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

type fakeReader struct {
	record    *domain.AnalysisRecord
	summaries []domain.RecordSummary
	err       error
	gotLimit  int
}

func (f *fakeReader) GetByID(_ context.Context, _ string) (*domain.AnalysisRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *fakeReader) Recent(_ context.Context, _ string, limit int) ([]domain.RecordSummary, error) {
	f.gotLimit = limit
	return f.summaries, f.err
}

type fakeConfirmer struct {
	product *domain.Product
	err     error
}

func (f *fakeConfirmer) Confirm(_ context.Context, _, _ string, _ *domain.ProductDraft) (*domain.Product, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.product, nil
}

type fakeFeedback struct {
	err error
	got domain.LearningFeedback
}

func (f *fakeFeedback) Submit(_ context.Context, feedback domain.LearningFeedback) error {
	f.got = feedback
	return f.err
}

func testRouter(analyzer *fakeAnalyzer, reader *fakeReader, confirmer *fakeConfirmer, feedback *fakeFeedback) http.Handler {
	if analyzer == nil {
		analyzer = &fakeAnalyzer{}
	}
	if reader == nil {
		reader = &fakeReader{}
	}
	if confirmer == nil {
		confirmer = &fakeConfirmer{}
	}
	if feedback == nil {
		feedback = &fakeFeedback{}
	}
	return NewRouter(analyzer, reader, confirmer, feedback, RouterOptions{}).Handler()
}

func multipartUpload(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func completedOutcome() *domain.AnalysisOutcome {
	breakdown := domain.ConfidenceBreakdown{Overall: 0.87, Level: domain.LevelVeryHigh}
	validation := domain.ValidationReport{OriginalSpecsCount: 6, FinalSpecsCount: 4, NoiseRemovedCount: 1, InvalidRemovedCount: 1, DataQualityScore: 0.7}
	draft := &domain.ProductDraft{BasicInfo: domain.BasicInfo{Name: "测试仪", Code: "A703"}}
	draft.EnsureDefaults()
	return &domain.AnalysisOutcome{
		Record: &domain.AnalysisRecord{
			ID:                      "rec-1",
			DocumentName:            "A703.pdf",
			DocumentType:            domain.FormatPDF,
			DocumentSize:            2048,
			TextLength:              600,
			WordCount:               80,
			ExtractedData:           draft,
			ConfidenceScores:        &breakdown,
			QualityValidationReport: &validation,
			DataQualityScore:        0.7,
			Status:                  domain.AnalysisCompleted,
			Success:                 true,
			AnalysisDurationS:       3.2,
			Warnings:                []string{},
		},
	}
}

func TestAnalyzeDocumentHappyPath(t *testing.T) {
	analyzer := &fakeAnalyzer{outcome: completedOutcome()}
	handler := testRouter(analyzer, nil, nil, nil)

	body, contentType := multipartUpload(t, "document", "A703.pdf", "%PDF-1.4 data")
	req := httptest.NewRequest(http.MethodPost, "/ai-analysis/analyze-document", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-User-Id", "u1")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if analyzer.gotUser != "u1" || analyzer.gotName != "A703.pdf" {
		t.Errorf("analyzer called with %q/%q", analyzer.gotUser, analyzer.gotName)
	}

	var resp struct {
		Success          bool                        `json:"success"`
		AnalysisID       string                      `json:"analysis_id"`
		ConfidenceScores *domain.ConfidenceBreakdown `json:"confidence_scores"`
		DataQualityScore float64                     `json:"data_quality_score"`
		ProcessingTime   float64                     `json:"processing_time"`
		DocumentInfo     struct {
			Type string `json:"type"`
		} `json:"document_info"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.AnalysisID != "rec-1" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ConfidenceScores == nil || resp.ConfidenceScores.Level != domain.LevelVeryHigh {
		t.Errorf("confidence = %+v", resp.ConfidenceScores)
	}
	if resp.DocumentInfo.Type != "pdf" || resp.ProcessingTime != 3.2 {
		t.Errorf("document info = %+v time = %v", resp.DocumentInfo, resp.ProcessingTime)
	}
}

func TestAnalyzeDocumentErrorEnvelope(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"quota", domain.WrapError(domain.ErrQuotaExceeded, "extract", errors.New("burst")), http.StatusTooManyRequests, "QuotaExceeded"},
		{"unsupported", domain.WrapError(domain.ErrUnsupportedFormat, "resolve", errors.New(".exe")), http.StatusBadRequest, "UnsupportedFormat"},
		{"empty", domain.WrapError(domain.ErrEmptyDocument, "extract", errors.New("blank")), http.StatusUnprocessableEntity, "EmptyDocument"},
		{"provider", domain.WrapError(domain.ErrProviderUnavailable, "chat", errors.New("secret provider detail")), http.StatusServiceUnavailable, "ProviderUnavailable"},
		{"badjson", domain.WrapError(domain.ErrInvalidJSON, "decode", errors.New("truncated")), http.StatusBadGateway, "InvalidJSON"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := testRouter(&fakeAnalyzer{err: tc.err}, nil, nil, nil)
			body, contentType := multipartUpload(t, "document", "x.pdf", "data")
			req := httptest.NewRequest(http.MethodPost, "/ai-analysis/analyze-document", body)
			req.Header.Set("Content-Type", contentType)

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			var envelope struct {
				Success   bool   `json:"success"`
				Error     string `json:"error"`
				ErrorCode string `json:"error_code"`
				RequestID string `json:"request_id"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decode envelope: %v", err)
			}
			if envelope.Success || envelope.ErrorCode != tc.wantCode {
				t.Errorf("envelope = %+v", envelope)
			}
			if envelope.RequestID == "" {
				t.Error("missing request id")
			}
			if strings.Contains(envelope.Error, "secret") {
				t.Error("provider error text leaked to the client")
			}
		})
	}
}

func TestAnalyzeDocumentRequiresMultipartField(t *testing.T) {
	handler := testRouter(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodPost, "/ai-analysis/analyze-document", strings.NewReader("not multipart"))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGetAnalysisNotFound(t *testing.T) {
	reader := &fakeReader{err: domain.WrapError(domain.ErrRecordNotFound, "get", errors.New("missing"))}
	handler := testRouter(nil, reader, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ai-analysis/analysis/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestConfirmAnalysis(t *testing.T) {
	confirmer := &fakeConfirmer{product: &domain.Product{ID: "prod-1"}}
	handler := testRouter(nil, nil, confirmer, nil)

	payload := `{"final_data": {"basic_info": {"name": "测试仪", "code": "A703"}}}`
	req := httptest.NewRequest(http.MethodPost, "/ai-analysis/analysis/rec-1/confirm", strings.NewReader(payload))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success   bool   `json:"success"`
		ProductID string `json:"product_id"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !resp.Success || resp.ProductID != "prod-1" {
		t.Errorf("response = %+v", resp)
	}
}

func TestConfirmAnalysisConflict(t *testing.T) {
	confirmer := &fakeConfirmer{err: domain.WrapError(domain.ErrAlreadyMaterialized, "confirm", errors.New("repeat"))}
	handler := testRouter(nil, nil, confirmer, nil)

	req := httptest.NewRequest(http.MethodPost, "/ai-analysis/analysis/rec-1/confirm", strings.NewReader(`{"final_data":{"basic_info":{"name":"x"}}}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestRecentResults(t *testing.T) {
	reader := &fakeReader{summaries: []domain.RecordSummary{{ID: "rec-1"}, {ID: "rec-2"}}}
	handler := testRouter(nil, reader, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/ai-analysis/recent-results?limit=5", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if reader.gotLimit != 5 {
		t.Errorf("limit = %d", reader.gotLimit)
	}
	var resp struct {
		TotalCount int `json:"total_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCount != 2 {
		t.Errorf("total_count = %d", resp.TotalCount)
	}
}

func TestRecentResultsRejectsBadLimit(t *testing.T) {
	handler := testRouter(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/ai-analysis/recent-results?limit=abc", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestSubmitFeedback(t *testing.T) {
	feedback := &fakeFeedback{}
	handler := testRouter(nil, nil, nil, feedback)

	payload := `{"analysis_record_id":"rec-1","field_diffs":{"basic_info.category":{"before":"其他","after":"测量仪表"}}}`
	req := httptest.NewRequest(http.MethodPost, "/ai-analysis/feedback", strings.NewReader(payload))
	req.Header.Set("X-User-Id", "u1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if feedback.got.AnalysisRecordID != "rec-1" || feedback.got.UserID != "u1" {
		t.Errorf("feedback = %+v", feedback.got)
	}
	if diff := feedback.got.FieldDiffs["basic_info.category"]; diff.After != "测量仪表" {
		t.Errorf("diff = %+v", diff)
	}
}

func TestSupportedFormats(t *testing.T) {
	handler := testRouter(nil, nil, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/ai-analysis/supported-formats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Formats map[string]struct {
			Extensions []string `json:"extensions"`
			MaxSizeMB  int      `json:"max_size_mb"`
		} `json:"formats"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	pdf, ok := resp.Formats["pdf"]
	if !ok || pdf.MaxSizeMB != 10 || len(pdf.Extensions) != 1 {
		t.Errorf("pdf format = %+v", resp.Formats)
	}
}

func TestUserFromRequestBearerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer token-123")
	if got := userFromRequest(req); got != "token-123" {
		t.Errorf("user = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := userFromRequest(req); got != "anonymous" {
		t.Errorf("user = %q", got)
	}
}
