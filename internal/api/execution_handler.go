package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
)

// ListExecutions возвращает список executions с фильтрацией.
// GET /api/v1/executions?recipe_id=...&status=...&limit=...&offset=...
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	filter := repo.ExecutionFilter{}

	if recipeIDStr := r.URL.Query().Get("recipe_id"); recipeIDStr != "" {
		recipeID, err := uuid.Parse(recipeIDStr)
		if err != nil {
			BadRequest(w, "invalid recipe_id")
			return
		}
		filter.RecipeID = &recipeID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.ExecutionStatus(status)
	}

	filter.Limit = queryInt(r, "limit", 50)
	filter.Offset = queryInt(r, "offset", 0)

	executions, err := h.executionRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ExecutionResponse, len(executions))
	for i, ex := range executions {
		result[i] = ExecutionFromDomain(ex)
	}

	List(w, result, len(result))
}

// CreateExecution создаёт новый execution для recipe.
// POST /api/v1/recipes/{id}/executions
func (h *Handler) CreateExecution(w http.ResponseWriter, r *http.Request) {
	recipeID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid recipe id")
		return
	}

	var req CreateExecutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	recipe, err := h.recipeRepo.GetByID(r.Context(), recipeID)
	if HandleRepoError(w, h.logger, err, "recipe not found") {
		return
	}

	if !recipe.IsActive {
		InvalidState(w, "recipe is not active")
		return
	}

	ex := &domain.Execution{
		ID:        uuid.New(),
		RecipeID:  recipe.ID,
		Status:    domain.ExecutionStatusPending,
		Input:     req.Input,
		CreatedAt: time.Now(),
	}

	if err := h.executionRepo.Create(r.Context(), ex); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Событие best effort: движок подберёт execution polling'ом,
	// если публикация не удалась.
	if h.publisher != nil {
		if err := h.publisher.PublishExecutionPending(r.Context(), ex.ID.String()); err != nil {
			h.logger.Warn("failed to publish execution.pending", "execution_id", ex.ID, "error", err)
		}
	}

	Created(w, ExecutionFromDomain(*ex))
}

// GetExecution возвращает execution по ID.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	ex, err := h.executionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	Success(w, ExecutionFromDomain(*ex))
}

// CancelExecution отменяет execution.
//
// PENDING отменяется сразу. Для RUNNING взводится флаг cancel_requested:
// движок проверяет его на границе шагов, текущий шаг дорабатывает до конца.
// POST /api/v1/executions/{id}/cancel
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	ex, err := h.executionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	switch ex.Status {
	case domain.ExecutionStatusPending:
		ex.MarkCancelled()
		if err := h.executionRepo.Update(r.Context(), ex); err != nil {
			InternalError(w, h.logger, err)
			return
		}

	case domain.ExecutionStatusRunning:
		if err := h.executionRepo.RequestCancel(r.Context(), id); err != nil {
			HandleRepoError(w, h.logger, err, "execution not found")
			return
		}
		ex.CancelRequested = true

	default:
		InvalidState(w, "execution is already finished")
		return
	}

	Success(w, ExecutionFromDomain(*ex))
}

// ListExecutionSteps возвращает результаты шагов execution.
// GET /api/v1/executions/{id}/steps
func (h *Handler) ListExecutionSteps(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	_, err = h.executionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	results, err := h.stepResultRepo.ListByExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	out := make([]StepResultResponse, len(results))
	for i, sr := range results {
		out[i] = StepResultFromDomain(sr)
	}

	List(w, out, len(out))
}

// GetExecutionCosts возвращает постатейную разбивку стоимости execution.
// GET /api/v1/executions/{id}/costs
func (h *Handler) GetExecutionCosts(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	_, err = h.executionRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "execution not found") {
		return
	}

	entries, err := h.costRepo.ListByExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	total, err := h.costRepo.SumByExecution(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	breakdown := CostBreakdownResponse{
		ExecutionID: id,
		Total:       total,
		Entries:     make([]CostEntryResponse, len(entries)),
	}
	for i, e := range entries {
		breakdown.Entries[i] = CostEntryFromDomain(e)
	}

	Success(w, breakdown)
}

// queryInt парсит целочисленный query-параметр с дефолтным значением.
func queryInt(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
