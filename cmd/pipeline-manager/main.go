// cmd/pipeline-manager/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"prompt-pipeline/internal/api"
	"prompt-pipeline/internal/common/config"
	"prompt-pipeline/internal/common/database"
	"prompt-pipeline/internal/common/llm"
	"prompt-pipeline/internal/common/logger"
	"prompt-pipeline/internal/common/observability"
	"prompt-pipeline/internal/common/retrieval"
	"prompt-pipeline/internal/services/compressor"
	"prompt-pipeline/internal/services/notification"
	"prompt-pipeline/internal/services/orchestrator"
	"prompt-pipeline/internal/services/provisioning"
	"prompt-pipeline/internal/services/registry"
	"prompt-pipeline/internal/store"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2 // Exponential backoff
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func main() {
	zapLog := logger.New("info", "console")
	defer zapLog.Sync()

	// Wrap zap logger with our logger interface
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline manager...")

	cfg, err := config.Load()
	if err != nil {
		zapLog.Fatal("config load failed", zap.Error(err))
	}

	obs := observability.New("pipeline-manager")
	defer obs.Shutdown()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init Redis with retry ---
	var redis *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	// --- Stores ---
	var templates store.TemplateStore = store.NewPostgresTemplateStore(pg.DB)
	if cfg.Pipeline.TemplateCacheTTLSec > 0 {
		templates = store.NewCachedTemplateStore(templates, redis.Client,
			time.Duration(cfg.Pipeline.TemplateCacheTTLSec)*time.Second, log)
	}
	elements := store.NewPostgresElementStore(pg.DB)
	generations := store.NewPostgresGenerationStore(pg.DB)
	projects := store.NewPostgresProjectStore(pg.DB)

	// --- Shared clients ---
	provider := llm.NewClient(cfg.LLM, log)

	var retriever retrieval.Retriever = retrieval.NewElasticsearchRetriever(
		esClient.Client, cfg.Retrieval.Index, log)
	if cfg.Retrieval.CacheTTLSec > 0 {
		retriever = retrieval.NewCachedRetriever(retriever, redis.Client,
			time.Duration(cfg.Retrieval.CacheTTLSec)*time.Second, log)
	}

	// --- Services ---
	compressorSvc := compressor.NewService(provider, elements, &compressor.Config{
		Model:       cfg.LLM.DefaultModel,
		Temperature: 0.2,
		MaxTokens:   cfg.Pipeline.CompressionMaxTokens,
		Timeout:     time.Duration(cfg.LLM.Timeout) * time.Millisecond,
		BatchSize:   cfg.Pipeline.CompressionBatchSize,
		BatchPause:  time.Duration(cfg.Pipeline.CompressionPauseMs) * time.Millisecond,
	}, log)

	registrySvc := registry.NewService(templates, elements, compressorSvc, log)
	provisioningSvc := provisioning.NewService(templates, elements, projects, log)
	orchestratorSvc := orchestrator.NewService(elements, projects, generations, retriever, provider, &orchestrator.Config{
		TopK:            cfg.Retrieval.TopK,
		BulkConcurrency: cfg.Pipeline.BulkConcurrency,
	}, log)

	if cfg.Notifications.Email.Enabled || cfg.Notifications.SMS.Enabled {
		notificationSvc, err := notification.NewService(ctx, &cfg.Notifications, pg.DB, log)
		if err != nil {
			zapLog.Warn("notification service unavailable, continuing without it", zap.Error(err))
		} else {
			orchestratorSvc.SetNotifier(notificationSvc)
		}
	}

	zapLog.Info("Pipeline services initialized")

	// --- Background loops ---
	if cfg.Pipeline.SweepIntervalSec > 0 {
		go runSweepLoop(ctx, compressorSvc, cfg.Pipeline, zapLog)
	}
	if cfg.Pipeline.CleanupIntervalSec > 0 && cfg.Pipeline.CleanupOlderThanDays > 0 {
		go runCleanupLoop(ctx, registrySvc, cfg.Pipeline, zapLog)
	}

	// --- API server ---
	router := mux.NewRouter()
	router.Use(api.Instrument(obs))
	apiHandler := api.NewHandler(registrySvc, provisioningSvc, orchestratorSvc, compressorSvc, generations, log)
	apiHandler.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}
	go func() {
		zapLog.Info("API server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("API server stopped", zap.Error(err))
		}
	}()

	// --- Metrics endpoint ---
	go func() {
		http.Handle("/metrics", promhttp.Handler())
		addr := fmt.Sprintf(":%d", cfg.App.MetricsPort)
		zapLog.Info("metrics server listening", zap.String("addr", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			zapLog.Error("metrics server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLog.Info("Shutdown signal received, stopping pipeline...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("API server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Pipeline manager stopped gracefully")
}

// runSweepLoop periodically fills in retrieval prompts for elements that were
// provisioned before compression ran or whose compression failed.
func runSweepLoop(ctx context.Context, svc *compressor.Service, cfg config.PipelineConfig, log *zap.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.SweepIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := svc.SweepMissing(ctx, store.SweepFilter{Limit: cfg.SweepLimit})
			if err != nil {
				log.Error("retrieval prompt sweep failed", zap.Error(err))
				continue
			}
			if report.Processed > 0 {
				log.Info("retrieval prompt sweep finished",
					zap.Int("processed", report.Processed),
					zap.Int("succeeded", report.Succeeded),
				)
			}
		}
	}
}

// runCleanupLoop periodically removes old templates with no usage and no
// referencing elements.
func runCleanupLoop(ctx context.Context, svc *registry.Service, cfg config.PipelineConfig, log *zap.Logger) {
	ticker := time.NewTicker(time.Duration(cfg.CleanupIntervalSec) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			report, err := svc.CleanupUnused(ctx, cfg.CleanupOlderThanDays, false)
			if err != nil {
				log.Error("template cleanup failed", zap.Error(err))
				continue
			}
			if report.Count > 0 {
				log.Info("template cleanup finished", zap.Int("removed", report.Count))
			}
		}
	}
}
