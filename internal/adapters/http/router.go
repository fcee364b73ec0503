package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/core/ports"
	"github.com/electroquote/cpq-backend/internal/observability/metrics"
)

var (
	errMissingID = errors.New("analysis id is required")
	errBadLimit  = errors.New("limit must be a non-negative integer")
)

// UploadLimitsMB mirrors the per-format extractor ceilings for the
// supported-formats endpoint.
type UploadLimitsMB struct {
	PDF   int
	Word  int
	Excel int
	Text  int
}

type Router struct {
	analyzer  ports.DocumentAnalyzer
	reader    ports.AnalysisReader
	confirmer ports.AnalysisConfirmer
	feedback  ports.FeedbackIntake

	metrics *metrics.HTTPServerMetrics
	service string
	model   string
	limits  UploadLimitsMB
}

type RouterOptions struct {
	Metrics *metrics.HTTPServerMetrics
	Service string
	Model   string
	Limits  UploadLimitsMB
}

func NewRouter(
	analyzer ports.DocumentAnalyzer,
	reader ports.AnalysisReader,
	confirmer ports.AnalysisConfirmer,
	feedback ports.FeedbackIntake,
	opts RouterOptions,
) *Router {
	if opts.Service == "" {
		opts.Service = "cpq-api"
	}
	if opts.Limits == (UploadLimitsMB{}) {
		opts.Limits = UploadLimitsMB{PDF: 10, Word: 5, Excel: 5, Text: 2}
	}
	return &Router{
		analyzer:  analyzer,
		reader:    reader,
		confirmer: confirmer,
		feedback:  feedback,
		metrics:   opts.Metrics,
		service:   opts.Service,
		model:     opts.Model,
		limits:    opts.Limits,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/ai-analysis/analyze-document", rt.analyzeDocument)
	mux.HandleFunc("/ai-analysis/recent-results", rt.recentResults)
	mux.HandleFunc("/ai-analysis/feedback", rt.submitFeedback)
	mux.HandleFunc("/ai-analysis/supported-formats", rt.supportedFormats)
	mux.HandleFunc("/ai-analysis/analysis/", rt.analysisSubtree)

	var handler http.Handler = mux
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
		handler = rt.metrics.Middleware(rt.service, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type documentInfo struct {
	Filename   string `json:"filename"`
	Type       string `json:"type"`
	SizeBytes  int64  `json:"size_bytes"`
	TextLength int    `json:"text_length"`
	WordCount  int    `json:"word_count"`
}

type analyzeResponse struct {
	Success            bool                        `json:"success"`
	AnalysisID         string                      `json:"analysis_id"`
	ExtractedData      *domain.ProductDraft        `json:"extracted_data"`
	ConfidenceScores   *domain.ConfidenceBreakdown `json:"confidence_scores"`
	DataQualityScore   float64                     `json:"data_quality_score"`
	ValidationReport   *domain.ValidationReport    `json:"validation_report"`
	DocumentInfo       documentInfo                `json:"document_info"`
	ProcessingTime     float64                     `json:"processing_time"`
	Warnings           []string                    `json:"warnings"`
	PersistenceWarning bool                        `json:"persistence_warning,omitempty"`
}

func (rt *Router) analyzeDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, r)
		return
	}

	file, fileHeader, err := r.FormFile("document")
	if err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "analyze document", err))
		return
	}
	defer file.Close()

	outcome, err := rt.analyzer.Analyze(
		r.Context(),
		userFromRequest(r),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}

	record := outcome.Record
	if rt.metrics != nil {
		rt.metrics.RecordAnalysis(rt.service, record, outcome.PersistWarning)
		rt.metrics.RecordTokenUsage(rt.service, rt.model, outcome.PromptTokens, outcome.CompletionTokens)
	}

	writeJSON(w, http.StatusOK, analyzeResponse{
		Success:          true,
		AnalysisID:       record.ID,
		ExtractedData:    record.ExtractedData,
		ConfidenceScores: record.ConfidenceScores,
		DataQualityScore: record.DataQualityScore,
		ValidationReport: record.QualityValidationReport,
		DocumentInfo: documentInfo{
			Filename:   record.DocumentName,
			Type:       string(record.DocumentType),
			SizeBytes:  record.DocumentSize,
			TextLength: record.TextLength,
			WordCount:  record.WordCount,
		},
		ProcessingTime:     record.AnalysisDurationS,
		Warnings:           record.Warnings,
		PersistenceWarning: outcome.PersistWarning,
	})
}

// analysisSubtree dispatches /ai-analysis/analysis/{id} and
// /ai-analysis/analysis/{id}/confirm.
func (rt *Router) analysisSubtree(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/ai-analysis/analysis/")
	if rest == "" {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "analysis route", errMissingID))
		return
	}

	if id, ok := strings.CutSuffix(rest, "/confirm"); ok {
		rt.confirmAnalysis(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		http.NotFound(w, r)
		return
	}
	rt.getAnalysis(w, r, rest)
}

func (rt *Router) getAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, r)
		return
	}
	record, err := rt.reader.GetByID(r.Context(), id)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"record":  record,
	})
}

func (rt *Router) confirmAnalysis(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, r)
		return
	}

	var req struct {
		FinalData *domain.ProductDraft `json:"final_data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "confirm analysis", err))
		return
	}

	product, err := rt.confirmer.Confirm(r.Context(), id, userFromRequest(r), req.FinalData)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordConfirm(rt.service, domain.ErrorCode(err))
		}
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordConfirm(rt.service, "success")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"product_id": product.ID,
	})
}

func (rt *Router) recentResults(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, r)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "recent results", errBadLimit))
			return
		}
		limit = parsed
	}

	summaries, err := rt.reader.Recent(r.Context(), userFromRequest(r), limit)
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"results":     summaries,
		"total_count": len(summaries),
	})
}

func (rt *Router) submitFeedback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		rt.methodNotAllowed(w, r)
		return
	}

	var req struct {
		AnalysisRecordID string                      `json:"analysis_record_id"`
		FieldDiffs       map[string]domain.FieldDiff `json:"field_diffs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rt.writeError(w, r, domain.WrapError(domain.ErrInvalidInput, "submit feedback", err))
		return
	}

	err := rt.feedback.Submit(r.Context(), domain.LearningFeedback{
		AnalysisRecordID: req.AnalysisRecordID,
		UserID:           userFromRequest(r),
		FieldDiffs:       req.FieldDiffs,
	})
	if err != nil {
		rt.writeError(w, r, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordFeedback(rt.service)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) supportedFormats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rt.methodNotAllowed(w, r)
		return
	}
	type formatInfo struct {
		Extensions []string `json:"extensions"`
		MaxSizeMB  int      `json:"max_size_mb"`
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"formats": map[string]formatInfo{
			"pdf":   {Extensions: []string{".pdf"}, MaxSizeMB: rt.limits.PDF},
			"word":  {Extensions: []string{".doc", ".docx"}, MaxSizeMB: rt.limits.Word},
			"excel": {Extensions: []string{".xls", ".xlsx"}, MaxSizeMB: rt.limits.Excel},
			"text":  {Extensions: []string{".txt", ".md"}, MaxSizeMB: rt.limits.Text},
		},
	})
}

func (rt *Router) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeErrorEnvelope(w, http.StatusMethodNotAllowed, "method not allowed", "MethodNotAllowed", requestIDFromContext(r.Context()))
}

func (rt *Router) writeError(w http.ResponseWriter, r *http.Request, err error) {
	writeErrorEnvelope(w,
		mapErrorToHTTPStatus(err),
		clientMessage(err),
		domain.ErrorCode(err),
		requestIDFromContext(r.Context()),
	)
}

func writeErrorEnvelope(w http.ResponseWriter, status int, message, code, requestID string) {
	writeJSON(w, status, map[string]any{
		"success":    false,
		"error":      message,
		"error_code": code,
		"request_id": requestID,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// userFromRequest resolves the caller identity: explicit header first, then
// the bearer token subject, then anonymous.
func userFromRequest(r *http.Request) string {
	if user := strings.TrimSpace(r.Header.Get("X-User-Id")); user != "" {
		return user
	}
	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		if token = strings.TrimSpace(token); token != "" {
			return token
		}
	}
	return "anonymous"
}
