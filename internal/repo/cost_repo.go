package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// CostRepo — репозиторий журнала стоимости.
// Записи append-only: по одной на платный вызов провайдера, включая
// вызовы упавших и отменённых executions.
type CostRepo struct {
	pool *pgxpool.Pool
}

// NewCostRepo создаёт новый CostRepo.
func NewCostRepo(pool *pgxpool.Pool) *CostRepo {
	return &CostRepo{pool: pool}
}

// Create добавляет запись стоимости.
func (r *CostRepo) Create(ctx context.Context, entry *domain.CostEntry) error {
	query := `
		INSERT INTO cost_entries (id, execution_id, step_index, provider, model,
		                          units, unit_kind, cost, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.pool.Exec(ctx, query,
		entry.ID,
		entry.ExecutionID,
		entry.StepIndex,
		entry.Provider,
		nullString(entry.Model),
		entry.Units,
		entry.UnitKind,
		entry.Cost,
		entry.LatencyMs,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cost entry: %w", err)
	}
	return nil
}

// ListByExecution возвращает записи стоимости execution по порядку шагов.
func (r *CostRepo) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]domain.CostEntry, error) {
	query := `
		SELECT id, execution_id, step_index, provider, model,
		       units, unit_kind, cost, latency_ms, created_at
		FROM cost_entries
		WHERE execution_id = $1
		ORDER BY step_index ASC, created_at ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list cost entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.CostEntry
	for rows.Next() {
		var e domain.CostEntry
		var model *string
		if err := rows.Scan(
			&e.ID,
			&e.ExecutionID,
			&e.StepIndex,
			&e.Provider,
			&model,
			&e.Units,
			&e.UnitKind,
			&e.Cost,
			&e.LatencyMs,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan cost entry: %w", err)
		}
		if model != nil {
			e.Model = *model
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// SumByExecution возвращает суммарную стоимость execution.
func (r *CostRepo) SumByExecution(ctx context.Context, executionID uuid.UUID) (float64, error) {
	query := `
		SELECT COALESCE(SUM(cost), 0)
		FROM cost_entries
		WHERE execution_id = $1
	`
	var total float64
	if err := r.pool.QueryRow(ctx, query, executionID).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum cost entries: %w", err)
	}
	return total, nil
}
