// Package runner — контроллер выполнения executions.
//
// Runner получает новые executions из очереди RabbitMQ (event-driven)
// и подстраховывается периодическим опросом PENDING в БД (polling
// fallback). Сам шаговый цикл — в execute.go.
package runner

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/steps"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// Значения конфигурации по умолчанию.
const (
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 100
)

// Runner управляет выполнением executions.
type Runner struct {
	recipes     RecipeStore
	executions  ExecutionStore
	stepResults StepResultStore
	costs       CostStore

	registry *steps.Registry
	store    storage.ObjectStore
	notifier Notifier

	consumer *mq.Consumer

	// active — executions в обработке (guard от двойного запуска
	// event-доставкой и polling'ом одновременно).
	active map[uuid.UUID]struct{}
	mu     sync.Mutex

	pollInterval time.Duration
	batchSize    int

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Runner.
type Config struct {
	Recipes     RecipeStore
	Executions  ExecutionStore
	StepResults StepResultStore
	Costs       CostStore

	Registry *steps.Registry
	Store    storage.ObjectStore

	// Notifier — best-effort уведомления о завершении. Может быть nil.
	Notifier Notifier

	// Consumer — источник событий executions.pending. Nil — только polling.
	Consumer *mq.Consumer

	PollInterval time.Duration // интервал polling fallback (default: 10s)
	BatchSize    int           // количество executions за один poll (default: 100)

	Logger *slog.Logger
}

// New создаёт новый Runner.
func New(cfg Config) *Runner {
	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Runner{
		recipes:      cfg.Recipes,
		executions:   cfg.Executions,
		stepResults:  cfg.StepResults,
		costs:        cfg.Costs,
		registry:     cfg.Registry,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		consumer:     cfg.Consumer,
		active:       make(map[uuid.UUID]struct{}),
		pollInterval: pollInterval,
		batchSize:    batchSize,
		logger:       logger,
	}
}

// Start запускает consumer событий и polling fallback.
func (r *Runner) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancelFunc = cancel

	r.logger.Info("starting runner",
		"poll_interval", r.pollInterval,
		"batch_size", r.batchSize,
		"step_types", r.registry.Types(),
	)

	if r.consumer != nil {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			err := r.consumer.Start(ctx, r.handlePendingEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("pending consumer error", "error", err)
			}
		}()
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.pollLoop(ctx)
	}()
}

// Stop останавливает Runner и дожидается завершения горутин.
func (r *Runner) Stop() {
	r.logger.Info("stopping runner...")
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.wg.Wait()
	r.logger.Info("runner stopped")
}

// handlePendingEvent обрабатывает событие executions.pending.
func (r *Runner) handlePendingEvent(ctx context.Context, body []byte) error {
	payload, err := mq.ParsePayload[mq.ExecutionPendingPayload](body)
	if err != nil {
		r.logger.Error("malformed pending event", "error", err)
		return nil // битое сообщение не переигрываем
	}

	id, err := uuid.Parse(payload.ExecutionID)
	if err != nil {
		r.logger.Error("malformed execution id in event", "id", payload.ExecutionID)
		return nil
	}

	return r.process(ctx, id)
}

// pollLoop — polling fallback. Первый проход сразу при старте:
// подхватываем executions, созданные пока движок был выключен.
func (r *Runner) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(r.pollInterval)
	defer ticker.Stop()

	r.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.poll(ctx)
		}
	}
}

// poll выполняет один проход по PENDING executions.
func (r *Runner) poll(ctx context.Context) {
	pending, err := r.executions.ListPending(ctx, r.batchSize)
	if err != nil {
		r.logger.Error("failed to list pending executions", "error", err)
		return
	}

	for i := range pending {
		if err := r.process(ctx, pending[i].ID); err != nil {
			r.logger.Error("failed to process execution from poll",
				"execution_id", pending[i].ID,
				"error", err,
			)
		}
	}
}

// process выполняет execution, если он ещё не в обработке.
func (r *Runner) process(ctx context.Context, id uuid.UUID) error {
	if !r.markActive(id) {
		return nil
	}
	defer r.unmarkActive(id)

	return r.Run(ctx, id)
}

func (r *Runner) markActive(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.active[id]; exists {
		return false
	}
	r.active[id] = struct{}{}
	return true
}

func (r *Runner) unmarkActive(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, id)
}
