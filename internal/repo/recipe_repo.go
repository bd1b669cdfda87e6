package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// RecipeRepo — репозиторий для работы с recipes.
// Шаги хранятся одним JSONB-документом: рецепт читается и сохраняется
// целиком, по отдельным шагам запросов не бывает.
type RecipeRepo struct {
	pool *pgxpool.Pool
}

// NewRecipeRepo создаёт новый RecipeRepo.
func NewRecipeRepo(pool *pgxpool.Pool) *RecipeRepo {
	return &RecipeRepo{pool: pool}
}

// Create создаёт новый recipe.
func (r *RecipeRepo) Create(ctx context.Context, recipe *domain.Recipe) error {
	stepsJSON, err := json.Marshal(recipe.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		INSERT INTO recipes (id, name, description, is_active, steps, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		recipe.ID,
		recipe.Name,
		nullString(recipe.Description),
		recipe.IsActive,
		stepsJSON,
		recipe.CreatedAt,
		recipe.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	return nil
}

// GetByID возвращает recipe по ID.
func (r *RecipeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Recipe, error) {
	query := `
		SELECT id, name, description, is_active, steps, created_at, updated_at
		FROM recipes
		WHERE id = $1
	`
	return scanRecipe(r.pool.QueryRow(ctx, query, id))
}

// GetByName возвращает recipe по имени.
func (r *RecipeRepo) GetByName(ctx context.Context, name string) (*domain.Recipe, error) {
	query := `
		SELECT id, name, description, is_active, steps, created_at, updated_at
		FROM recipes
		WHERE name = $1
	`
	return scanRecipe(r.pool.QueryRow(ctx, query, name))
}

// List возвращает список всех recipes.
func (r *RecipeRepo) List(ctx context.Context) ([]domain.Recipe, error) {
	query := `
		SELECT id, name, description, is_active, steps, created_at, updated_at
		FROM recipes
		ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	defer rows.Close()

	var recipes []domain.Recipe
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		recipes = append(recipes, *recipe)
	}
	return recipes, rows.Err()
}

// Update обновляет recipe вместе с шагами.
func (r *RecipeRepo) Update(ctx context.Context, recipe *domain.Recipe) error {
	stepsJSON, err := json.Marshal(recipe.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	query := `
		UPDATE recipes
		SET name = $2, description = $3, is_active = $4, steps = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		recipe.ID,
		recipe.Name,
		nullString(recipe.Description),
		recipe.IsActive,
		stepsJSON,
		recipe.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("update recipe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет recipe (каскадно удалит executions и schedules).
func (r *RecipeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM recipes WHERE id = $1`
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete recipe: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanRecipe сканирует одну строку в Recipe.
func scanRecipe(row pgx.Row) (*domain.Recipe, error) {
	var recipe domain.Recipe
	var description *string
	var stepsJSON []byte

	err := row.Scan(
		&recipe.ID,
		&recipe.Name,
		&description,
		&recipe.IsActive,
		&stepsJSON,
		&recipe.CreatedAt,
		&recipe.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan recipe: %w", err)
	}

	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &recipe.Steps); err != nil {
			return nil, fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if description != nil {
		recipe.Description = *description
	}

	return &recipe, nil
}

// isUniqueViolation проверяет ошибку на конфликт уникальности (23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
