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

// StepResultRepo — репозиторий для работы с step_results.
type StepResultRepo struct {
	pool *pgxpool.Pool
}

// NewStepResultRepo создаёт новый StepResultRepo.
func NewStepResultRepo(pool *pgxpool.Pool) *StepResultRepo {
	return &StepResultRepo{pool: pool}
}

const stepResultColumns = `
	id, execution_id, step_index, name, type, status,
	input_preview, output_preview, output, output_json,
	input_hash, output_hash, provider_ref, error,
	started_at, finished_at, created_at
`

// Create создаёт новую запись результата шага.
func (r *StepResultRepo) Create(ctx context.Context, sr *domain.StepResult) error {
	outputJSON, err := marshalNullable(sr.OutputJSON)
	if err != nil {
		return fmt.Errorf("marshal output_json: %w", err)
	}

	query := `
		INSERT INTO step_results (id, execution_id, step_index, name, type, status,
		                          input_preview, output_preview, output, output_json,
		                          input_hash, output_hash, provider_ref, error,
		                          started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = r.pool.Exec(ctx, query,
		sr.ID,
		sr.ExecutionID,
		sr.StepIndex,
		sr.Name,
		sr.Type,
		sr.Status,
		nullString(sr.InputPreview),
		nullString(sr.OutputPreview),
		nullString(sr.Output),
		outputJSON,
		nullString(sr.InputHash),
		nullString(sr.OutputHash),
		nullString(sr.ProviderRef),
		nullString(sr.Error),
		sr.StartedAt,
		sr.FinishedAt,
		sr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert step result: %w", err)
	}
	return nil
}

// Update обновляет результат шага после завершения.
func (r *StepResultRepo) Update(ctx context.Context, sr *domain.StepResult) error {
	outputJSON, err := marshalNullable(sr.OutputJSON)
	if err != nil {
		return fmt.Errorf("marshal output_json: %w", err)
	}

	query := `
		UPDATE step_results
		SET status = $2, output_preview = $3, output = $4, output_json = $5,
		    input_hash = $6, output_hash = $7, provider_ref = $8, error = $9,
		    finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		sr.ID,
		sr.Status,
		nullString(sr.OutputPreview),
		nullString(sr.Output),
		outputJSON,
		nullString(sr.InputHash),
		nullString(sr.OutputHash),
		nullString(sr.ProviderRef),
		nullString(sr.Error),
		sr.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update step result: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByExecution возвращает результаты шагов execution по порядку индексов.
func (r *StepResultRepo) ListByExecution(ctx context.Context, executionID uuid.UUID) ([]domain.StepResult, error) {
	query := `
		SELECT ` + stepResultColumns + `
		FROM step_results
		WHERE execution_id = $1
		ORDER BY step_index ASC
	`
	rows, err := r.pool.Query(ctx, query, executionID)
	if err != nil {
		return nil, fmt.Errorf("list step results: %w", err)
	}
	defer rows.Close()

	var results []domain.StepResult
	for rows.Next() {
		sr, err := scanStepResult(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *sr)
	}
	return results, rows.Err()
}

// scanStepResult сканирует одну строку в StepResult.
func scanStepResult(row pgx.Row) (*domain.StepResult, error) {
	var sr domain.StepResult
	var inputPreview, outputPreview, output *string
	var outputJSON []byte
	var inputHash, outputHash, providerRef, stepError *string

	err := row.Scan(
		&sr.ID,
		&sr.ExecutionID,
		&sr.StepIndex,
		&sr.Name,
		&sr.Type,
		&sr.Status,
		&inputPreview,
		&outputPreview,
		&output,
		&outputJSON,
		&inputHash,
		&outputHash,
		&providerRef,
		&stepError,
		&sr.StartedAt,
		&sr.FinishedAt,
		&sr.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan step result: %w", err)
	}

	if outputJSON != nil {
		if err := json.Unmarshal(outputJSON, &sr.OutputJSON); err != nil {
			return nil, fmt.Errorf("unmarshal output_json: %w", err)
		}
	}
	for dst, src := range map[*string]*string{
		&sr.InputPreview:  inputPreview,
		&sr.OutputPreview: outputPreview,
		&sr.Output:        output,
		&sr.InputHash:     inputHash,
		&sr.OutputHash:    outputHash,
		&sr.ProviderRef:   providerRef,
		&sr.Error:         stepError,
	} {
		if src != nil {
			*dst = *src
		}
	}

	return &sr, nil
}

// marshalNullable сериализует map в JSON, nil-map остаётся NULL.
func marshalNullable(m map[string]any) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}
