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

	"github.com/electroquote/cpq-backend/internal/bootstrap"
	"github.com/electroquote/cpq-backend/internal/config"
	"github.com/electroquote/cpq-backend/internal/core/domain"
	"github.com/electroquote/cpq-backend/internal/observability/logging"
	"github.com/electroquote/cpq-backend/internal/observability/metrics"
)

const service = "cpq-worker"

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(service, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(service)
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:        ":" + cfg.WorkerMetricsPort,
		Handler:     metricsMux,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("worker metrics server error: %v", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	log.Printf("worker subscribed to %s", cfg.NATSSubject)
	err = app.Queue.SubscribePersistRetry(ctx, func(handlerCtx context.Context, record *domain.AnalysisRecord) error {
		workerMetrics.StartRetry()
		workerMetrics.ObserveQueueLag(service, time.Since(record.CreatedAt))

		persistCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()

		start := time.Now()
		persistErr := app.Records.Create(persistCtx, record)
		workerMetrics.FinishRetry(service, time.Since(start), persistErr)
		if persistErr != nil {
			logger.Error("persist retry failed",
				"record_id", record.ID,
				"user_id", record.UserID,
				"error", persistErr,
			)
			return persistErr
		}
		logger.Info("persist retry succeeded", "record_id", record.ID)
		return nil
	})
	if err != nil {
		log.Fatalf("worker subscribe error: %v", err)
	}
}
