// Morana Scheduler — создаёт executions по расписаниям.
//
// Scheduler тикает раз в секунду. Среди нескольких экземпляров лидер
// выбирается через pg_try_advisory_lock: тики выполняет только лидер,
// остальные ждут освобождения блокировки.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
	"github.com/dan-auerbach/morana-sub000/internal/scheduler"
	"github.com/dan-auerbach/morana-sub000/internal/telemetry"
)

const schedLockKey int64 = 811917

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting morana-scheduler")

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

	sched := scheduler.New(scheduler.Config{
		Schedules:  repo.NewScheduleRepo(pool),
		Executions: repo.NewExecutionRepo(pool),
		Recipes:    repo.NewRecipeRepo(pool),
		Publisher:  publisher,
		Logger:     logger,
	})

	// scheduler loop
	go func() {
		tk := time.NewTicker(1 * time.Second)
		defer tk.Stop()

		var hasLock bool
		defer func() {
			if hasLock {
				_, _ = pool.Exec(context.Background(), "select pg_advisory_unlock($1)", schedLockKey)
			}
		}()

		for {
			select {
			case <-tk.C:
				// пытаемся стать лидером (или подтвердить лидерство)
				if !hasLock {
					var ok bool
					if err := pool.QueryRow(ctx, "select pg_try_advisory_lock($1)", schedLockKey).Scan(&ok); err != nil {
						logger.Error("advisory lock error", "error", err)
						continue
					}
					if ok {
						logger.Info("became scheduler leader")
					}
					hasLock = ok
				}

				if !hasLock {
					// не лидер — пропускаем тик
					continue
				}

				if err := sched.Tick(ctx); err != nil {
					logger.Error("scheduler tick failed", "error", err)
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
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
	logger.Info("morana-scheduler stopped")
}
