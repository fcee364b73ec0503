package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/electroquote/cpq-backend/internal/adapters/http"
	"github.com/electroquote/cpq-backend/internal/bootstrap"
	"github.com/electroquote/cpq-backend/internal/config"
	"github.com/electroquote/cpq-backend/internal/observability/logging"
	"github.com/electroquote/cpq-backend/internal/observability/metrics"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger("cpq-api", cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	serverMetrics := metrics.NewHTTPServerMetrics("cpq-api")
	router := httpadapter.NewRouter(app.AnalyzeUC, app.ReaderUC, app.ConfirmUC, app.FeedbackUC, httpadapter.RouterOptions{
		Metrics: serverMetrics,
		Service: "cpq-api",
		Model:   cfg.LLMModel,
		Limits: httpadapter.UploadLimitsMB{
			PDF:   cfg.MaxUploadMBPDF,
			Word:  cfg.MaxUploadMBDoc,
			Excel: cfg.MaxUploadMBXls,
			Text:  cfg.MaxUploadMBTxt,
		},
	}).Handler()

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 180 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("api listening on :%s", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("api shutdown error: %v", err)
	}
}
