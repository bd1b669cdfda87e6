package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
)

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules  *repo.ScheduleRepo
	executions *repo.ExecutionRepo
	recipes    *repo.RecipeRepo
	publisher  *mq.Publisher
	logger     *slog.Logger
	batchSize  int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules  *repo.ScheduleRepo
	Executions *repo.ExecutionRepo
	Recipes    *repo.RecipeRepo
	Publisher  *mq.Publisher
	Logger     *slog.Logger
	BatchSize  int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Scheduler{
		schedules:  cfg.Schedules,
		executions: cfg.Executions,
		recipes:    cfg.Recipes,
		publisher:  cfg.Publisher,
		logger:     cfg.Logger,
		batchSize:  batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого schedule создаёт execution
// 3. Обновляет next_due_at
// 4. Публикует execution.pending в RabbitMQ
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var processed, created int
	for i := range schedules {
		sched := &schedules[i]

		executionCreated, err := s.processSchedule(ctx, sched, now)
		if err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}

		processed++
		if executionCreated {
			created++
		}
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"processed", processed,
		"executions_created", created,
	)

	return nil
}

// processSchedule обрабатывает один schedule.
// Возвращает true, если execution был создан.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) (bool, error) {
	recipe, err := s.recipes.GetByID(ctx, sched.RecipeID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("recipe not found for schedule, skipping",
				"schedule_id", sched.ID,
				"recipe_id", sched.RecipeID,
			)
			return false, nil
		}
		return false, fmt.Errorf("get recipe: %w", err)
	}

	if !recipe.IsActive {
		s.logger.Debug("recipe inactive, skipping schedule",
			"schedule_id", sched.ID,
			"recipe_id", sched.RecipeID,
		)
		// next_due_at всё равно продвигаем, иначе schedule застрянет в due.
		return false, s.advance(ctx, sched, uuid.Nil, now)
	}

	ex := &domain.Execution{
		ID:        uuid.New(),
		RecipeID:  sched.RecipeID,
		Status:    domain.ExecutionStatusPending,
		Input:     sched.Input,
		CreatedAt: now,
	}

	if err := s.executions.Create(ctx, ex); err != nil {
		return false, fmt.Errorf("create execution: %w", err)
	}

	s.logger.Info("created execution from schedule",
		"execution_id", ex.ID,
		"schedule_id", sched.ID,
		"schedule_name", sched.Name,
		"recipe_id", sched.RecipeID,
	)

	if err := s.advance(ctx, sched, ex.ID, now); err != nil {
		return true, err
	}

	// Событие best effort: движок подберёт execution polling'ом,
	// если публикация не удалась.
	if s.publisher != nil {
		if err := s.publisher.PublishExecutionPending(ctx, ex.ID.String()); err != nil {
			s.logger.Warn("failed to publish execution.pending",
				"execution_id", ex.ID,
				"error", err,
			)
		}
	}

	return true, nil
}

// advance продвигает next_due_at и записывает факт запуска.
func (s *Scheduler) advance(ctx context.Context, sched *domain.Schedule, executionID uuid.UUID, now time.Time) error {
	nextDue, err := CalculateNextDue(sched, now)
	if err != nil {
		// Schedule некорректный — next_due_at не трогаем, но и не валимся.
		s.logger.Error("failed to calculate next due",
			"schedule_id", sched.ID,
			"error", err,
		)
		return nil
	}

	if executionID == uuid.Nil {
		sched.NextDueAt = &nextDue
		sched.UpdatedAt = now
	} else {
		sched.RecordRun(executionID, nextDue)
	}

	if err := s.schedules.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}
	return nil
}
