package runner

import (
	"context"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// Порты персистентности runner'а. Узкие интерфейсы вместо конкретных
// репозиториев: тесты подставляют in-memory реализации, production —
// pgx-репозитории из internal/repo.

// RecipeStore — чтение recipes.
type RecipeStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipe, error)
}

// ExecutionStore — чтение и обновление executions.
type ExecutionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	Update(ctx context.Context, ex *domain.Execution) error
	ListPending(ctx context.Context, limit int) ([]domain.Execution, error)
}

// StepResultStore — запись результатов шагов.
type StepResultStore interface {
	Create(ctx context.Context, sr *domain.StepResult) error
	Update(ctx context.Context, sr *domain.StepResult) error
}

// CostStore — запись cost ledger.
type CostStore interface {
	Create(ctx context.Context, entry *domain.CostEntry) error
}

// Notifier — best-effort уведомление о завершении execution.
// Отказ уведомления никогда не меняет статус execution.
type Notifier interface {
	PublishExecutionCompleted(ctx context.Context, executionID, status, errMsg string) error
}
