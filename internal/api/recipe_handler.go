package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/engine"
)

// ListRecipes возвращает список всех recipes.
// GET /api/v1/recipes
func (h *Handler) ListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := h.recipeRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RecipeResponse, len(recipes))
	for i, rec := range recipes {
		result[i] = RecipeFromDomain(rec)
	}

	List(w, result, len(result))
}

// CreateRecipe создаёт новый recipe.
// Шаги валидируются при сохранении: битый recipe не попадёт в БД
// и не упадёт позже посреди execution.
// POST /api/v1/recipes
func (h *Handler) CreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req CreateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	now := time.Now()
	recipe := &domain.Recipe{
		ID:          uuid.New(),
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
		Steps:       req.Steps,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := engine.Validate(recipe); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.recipeRepo.Create(r.Context(), recipe); err != nil {
		HandleRepoError(w, h.logger, err, "")
		return
	}

	Created(w, RecipeFromDomain(*recipe))
}

// GetRecipe возвращает recipe по ID.
// GET /api/v1/recipes/{id}
func (h *Handler) GetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid recipe id")
		return
	}

	recipe, err := h.recipeRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "recipe not found") {
		return
	}

	Success(w, RecipeFromDomain(*recipe))
}

// UpdateRecipe обновляет recipe. Обновлённые шаги проходят
// ту же валидацию, что и при создании.
// PUT /api/v1/recipes/{id}
func (h *Handler) UpdateRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid recipe id")
		return
	}

	var req UpdateRecipeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	recipe, err := h.recipeRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "recipe not found") {
		return
	}

	if req.Name != nil {
		recipe.Name = *req.Name
	}
	if req.Description != nil {
		recipe.Description = *req.Description
	}
	if req.IsActive != nil {
		recipe.IsActive = *req.IsActive
	}
	if req.Steps != nil {
		recipe.Steps = *req.Steps
	}
	recipe.UpdatedAt = time.Now()

	if err := engine.Validate(recipe); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.recipeRepo.Update(r.Context(), recipe); err != nil {
		HandleRepoError(w, h.logger, err, "recipe not found")
		return
	}

	Success(w, RecipeFromDomain(*recipe))
}

// DeleteRecipe удаляет recipe.
// DELETE /api/v1/recipes/{id}
func (h *Handler) DeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid recipe id")
		return
	}

	if err := h.recipeRepo.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "recipe not found")
		return
	}

	NoContent(w)
}
