package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/electroquote/cpq-backend/internal/config"
	"github.com/electroquote/cpq-backend/internal/core/ports"
	"github.com/electroquote/cpq-backend/internal/core/usecase"
	"github.com/electroquote/cpq-backend/internal/infrastructure/cleaning"
	"github.com/electroquote/cpq-backend/internal/infrastructure/confidence"
	"github.com/electroquote/cpq-backend/internal/infrastructure/extractor"
	"github.com/electroquote/cpq-backend/internal/infrastructure/llm/openai"
	"github.com/electroquote/cpq-backend/internal/infrastructure/queue/nats"
	"github.com/electroquote/cpq-backend/internal/infrastructure/repository/postgres"
	"github.com/electroquote/cpq-backend/internal/infrastructure/resilience"
	"github.com/electroquote/cpq-backend/internal/infrastructure/validation"
)

type App struct {
	Config config.Config

	Queue   ports.RetryQueue
	Records ports.AnalysisStore

	AnalyzeUC  ports.DocumentAnalyzer
	ReaderUC   ports.AnalysisReader
	ConfirmUC  ports.AnalysisConfirmer
	FeedbackUC ports.FeedbackIntake

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	records := postgres.NewAnalysisRepository(db)
	products := postgres.NewProductRepository(db)
	learning := postgres.NewLearningRepository(db)
	if cfg.HintHalfLifeDays > 0 {
		learning.HalfLife = time.Duration(cfg.HintHalfLifeDays) * 24 * time.Hour
	}
	if cfg.HintTopK > 0 {
		learning.TopK = cfg.HintTopK
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		return nil, fmt.Errorf("init retry queue: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())

	llmTimeout := time.Duration(cfg.AnalysisTimeoutS) * time.Second
	llm := openai.New(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, openai.Options{
		Timeout:  llmTimeout,
		Executor: executor,
		Quota:    openai.NewUserQuota(cfg.QuotaRequests, time.Duration(cfg.QuotaWindowMinutes)*time.Minute),
	})

	dispatcher := extractor.NewDispatcher(extractor.Limits{
		PDFBytes:   int64(cfg.MaxUploadMBPDF) << 20,
		WordBytes:  int64(cfg.MaxUploadMBDoc) << 20,
		ExcelBytes: int64(cfg.MaxUploadMBXls) << 20,
		TextBytes:  int64(cfg.MaxUploadMBTxt) << 20,
	}, nil, cfg.EnableOCR)

	cleaner := cleaning.NewCleaner()
	validator := validation.NewValidator(validation.Weights{
		Keep:   cfg.CleanKeepWeight,
		Filter: cfg.CleanFilterWeight,
		Fix:    cfg.CleanFixWeight,
	})
	scorer := confidence.NewScorer(confidence.DefaultWeights())

	analyzeUC := usecase.NewAnalyzeDocumentUseCase(dispatcher, cleaner, llm, validator, scorer, records, usecase.AnalyzeOptions{
		Learning:   learning,
		RetryQueue: queue,
		Logger:     logger,
		LLMTimeout: llmTimeout,
	})
	confirmUC := usecase.NewConfirmAnalysisUseCase(records, products, learning, logger)
	feedbackUC := usecase.NewFeedbackUseCase(records, learning, logger)
	readerUC := usecase.NewAnalysisReaderUseCase(records)

	return &App{
		Config:  cfg,
		Queue:   queue,
		Records: records,

		AnalyzeUC:  analyzeUC,
		ReaderUC:   readerUC,
		ConfirmUC:  confirmUC,
		FeedbackUC: feedbackUC,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
