// Morana API — HTTP API для управления recipes, executions и schedules.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dan-auerbach/morana-sub000/internal/api"
	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
	"github.com/dan-auerbach/morana-sub000/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting morana-api")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("connected to database")

	// Создаём репозитории
	recipeRepo := repo.NewRecipeRepo(pool)
	executionRepo := repo.NewExecutionRepo(pool)
	stepResultRepo := repo.NewStepResultRepo(pool)
	costRepo := repo.NewCostRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// RabbitMQ опционален: без него executions подхватит polling движка.
	var publisher *mq.Publisher
	mqURL := os.Getenv("AMQP_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}
	if mqConn, err := mq.NewConnection(mqURL, logger); err != nil {
		logger.Warn("RabbitMQ not available, executions will rely on engine polling", "error", err)
	} else {
		defer mqConn.Close()
		publisher, err = mq.NewPublisher(mqConn, logger)
		if err != nil {
			logger.Warn("failed to declare MQ topology", "error", err)
		}
	}

	// Создаём API handler
	handler := api.NewHandler(api.Config{
		RecipeRepo:     recipeRepo,
		ExecutionRepo:  executionRepo,
		StepResultRepo: stepResultRepo,
		CostRepo:       costRepo,
		ScheduleRepo:   scheduleRepo,
		Publisher:      publisher,
		Logger:         logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
