// Morana Engine — выполняет executions.
//
// Движок:
//   - Получает executions.pending из RabbitMQ
//   - Подстраховывается polling'ом PENDING в БД
//   - Выполняет шаги recipe последовательно (fail-fast)
//   - Ведёт cost ledger и публикует executions.completed
//
// Движок масштабируется горизонтально: каждый экземпляр берёт
// executions из общей очереди.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
	"github.com/dan-auerbach/morana-sub000/internal/runner"
	"github.com/dan-auerbach/morana-sub000/internal/secrets"
	"github.com/dan-auerbach/morana-sub000/internal/steps"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
	"github.com/dan-auerbach/morana-sub000/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting morana-engine")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Создаём репозитории
	recipeRepo := repo.NewRecipeRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	stepResultRepo := repo.NewStepResultRepo(pool)
	costRepo := repo.NewCostRepo(pool)

	// Object storage
	bucket := os.Getenv("S3_BUCKET")
	if bucket == "" {
		bucket = "morana"
	}
	var s3opts []storage.S3Option
	if endpoint := os.Getenv("S3_ENDPOINT"); endpoint != "" {
		s3opts = append(s3opts, storage.WithEndpoint(endpoint))
	}
	store, err := storage.NewS3Store(ctx, bucket, s3opts...)
	if err != nil {
		logger.Error("failed to init object storage", "error", err)
		os.Exit(1)
	}
	logger.Info("object storage ready", "bucket", bucket)

	// Секреты интеграций публикации
	var box *secrets.Box
	if key := os.Getenv("MORANA_SECRET_KEY"); key != "" {
		box, err = secrets.NewBox(key)
		if err != nil {
			logger.Error("invalid MORANA_SECRET_KEY", "error", err)
			os.Exit(1)
		}
	} else {
		logger.Warn("MORANA_SECRET_KEY not set, publish steps will fail to unseal credentials")
	}

	// Провайдеры
	transcriber := &provider.HTTPTranscriber{
		BaseURL: envOr("TRANSCRIBE_BASE_URL", "http://localhost:9001"),
		APIKey:  os.Getenv("TRANSCRIBE_API_KEY"),
	}
	generator := &provider.HTTPTextGenerator{
		BaseURL: envOr("TEXT_BASE_URL", "http://localhost:9002"),
		APIKey:  os.Getenv("TEXT_API_KEY"),
	}
	backend := &provider.HTTPGenerationBackend{
		BaseURL: envOr("GENERATION_BASE_URL", "http://localhost:9003"),
		APIKey:  os.Getenv("GENERATION_API_KEY"),
	}
	fetcher := &provider.HTTPURLFetcher{}

	// Реестр исполнителей шагов
	registry := steps.NewRegistry()
	registry.Register(steps.NewTranscriptionExecutor(transcriber, store))
	registry.Register(steps.NewTextExecutor(generator, fetcher, store))
	registry.Register(steps.NewImageExecutor(backend, store))
	registry.Register(steps.NewVideoExecutor(backend, store))
	registry.Register(steps.NewFormatExecutor())
	registry.Register(steps.NewPublishExecutor(&provider.HTTPPublisher{}, box, store))

	// RabbitMQ
	var publisher *mq.Publisher
	var consumer *mq.Consumer
	mqURL := os.Getenv("AMQP_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	if mqConn, err := mq.NewConnection(mqURL, logger); err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		publisher, err = mq.NewPublisher(mqConn, logger)
		if err != nil {
			logger.Warn("failed to create publisher", "error", err)
		}
		consumer, err = mq.NewConsumer(mqConn, mq.QueuePending, logger)
		if err != nil {
			logger.Warn("failed to create consumer, falling back to polling", "error", err)
		}
	}

	// Создаём runner
	r := runner.New(runner.Config{
		Recipes:     recipeRepo,
		Executions:  executionRepo,
		StepResults: stepResultRepo,
		Costs:       costRepo,
		Registry:    registry,
		Store:       store,
		Notifier:    notifierOrNil(publisher),
		Consumer:    consumer,
		Logger:      logger,
	})
	r.Start(ctx)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8082"
	if v := os.Getenv("ENGINE_PORT"); v != "" {
		port = ":" + v
	}

	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	r.Stop()
	logger.Info("morana-engine stopped")
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}

// notifierOrNil оборачивает publisher в runner.Notifier.
// Типизированный nil *mq.Publisher не должен попасть в интерфейс.
func notifierOrNil(p *mq.Publisher) runner.Notifier {
	if p == nil {
		return nil
	}
	return p
}
