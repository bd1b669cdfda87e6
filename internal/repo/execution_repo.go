package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// ExecutionRepo — репозиторий для работы с executions.
type ExecutionRepo struct {
	pool *pgxpool.Pool
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(pool *pgxpool.Pool) *ExecutionRepo {
	return &ExecutionRepo{pool: pool}
}

const executionColumns = `
	id, recipe_id, status, input, current_step, progress, cost,
	confidence, warning, preview_key, error, cancel_requested,
	started_at, finished_at, created_at
`

// Create создаёт новый execution.
func (r *ExecutionRepo) Create(ctx context.Context, ex *domain.Execution) error {
	inputJSON, err := json.Marshal(ex.Input)
	if err != nil {
		return fmt.Errorf("marshal input: %w", err)
	}

	query := `
		INSERT INTO executions (id, recipe_id, status, input, current_step, progress,
		                        cost, cancel_requested, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = r.pool.Exec(ctx, query,
		ex.ID,
		ex.RecipeID,
		ex.Status,
		inputJSON,
		ex.CurrentStep,
		ex.Progress,
		ex.Cost,
		ex.CancelRequested,
		ex.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает execution по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return scanExecution(r.pool.QueryRow(ctx, query, id))
}

// List возвращает список executions с фильтрацией.
func (r *ExecutionRepo) List(ctx context.Context, filter ExecutionFilter) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE ($1::uuid IS NULL OR recipe_id = $1)
		  AND ($2::text IS NULL OR status = $2::execution_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.RecipeID),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		ex, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *ex)
	}
	return executions, rows.Err()
}

// Update обновляет изменяемые поля execution.
func (r *ExecutionRepo) Update(ctx context.Context, ex *domain.Execution) error {
	query := `
		UPDATE executions
		SET status = $2, current_step = $3, progress = $4, cost = $5,
		    confidence = $6, warning = $7, preview_key = $8, error = $9,
		    cancel_requested = $10, started_at = $11, finished_at = $12
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		ex.ID,
		ex.Status,
		ex.CurrentStep,
		ex.Progress,
		ex.Cost,
		ex.Confidence,
		ex.Warning,
		nullString(ex.PreviewKey),
		nullString(ex.Error),
		ex.CancelRequested,
		ex.StartedAt,
		ex.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RequestCancel взводит флаг отмены для RUNNING execution.
// Для PENDING отмена мгновенная, этим занимается вызывающий код.
func (r *ExecutionRepo) RequestCancel(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE executions
		SET cancel_requested = TRUE
		WHERE id = $1 AND status = 'RUNNING'
	`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("request cancel: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// ListPending возвращает executions в статусе PENDING, старые первыми.
// Используется polling fallback движка на случай потери события.
func (r *ExecutionRepo) ListPending(ctx context.Context, limit int) ([]domain.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE status = 'PENDING'
		ORDER BY created_at ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending executions: %w", err)
	}
	defer rows.Close()

	var executions []domain.Execution
	for rows.Next() {
		ex, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *ex)
	}
	return executions, rows.Err()
}

// --- Helpers ---

// ExecutionFilter — параметры фильтрации executions.
type ExecutionFilter struct {
	RecipeID *uuid.UUID
	Status   domain.ExecutionStatus
	Limit    int
	Offset   int
}

// scanExecution сканирует одну строку в Execution.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var ex domain.Execution
	var inputJSON []byte
	var previewKey, execError *string

	err := row.Scan(
		&ex.ID,
		&ex.RecipeID,
		&ex.Status,
		&inputJSON,
		&ex.CurrentStep,
		&ex.Progress,
		&ex.Cost,
		&ex.Confidence,
		&ex.Warning,
		&previewKey,
		&execError,
		&ex.CancelRequested,
		&ex.StartedAt,
		&ex.FinishedAt,
		&ex.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	if inputJSON != nil {
		if err := json.Unmarshal(inputJSON, &ex.Input); err != nil {
			return nil, fmt.Errorf("unmarshal input: %w", err)
		}
	}
	if previewKey != nil {
		ex.PreviewKey = *previewKey
	}
	if execError != nil {
		ex.Error = *execError
	}

	return &ex, nil
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
