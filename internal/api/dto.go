package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// Recipe DTOs

// CreateRecipeRequest — запрос на создание recipe.
type CreateRecipeRequest struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	IsActive    bool          `json:"is_active"`
	Steps       []domain.Step `json:"steps"`
}

// UpdateRecipeRequest — запрос на обновление recipe.
// Nil-поля не изменяются.
type UpdateRecipeRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
	Steps       *[]domain.Step `json:"steps,omitempty"`
}

// RecipeResponse — ответ с recipe.
type RecipeResponse struct {
	ID          uuid.UUID     `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	IsActive    bool          `json:"is_active"`
	Steps       []domain.Step `json:"steps"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// RecipeFromDomain конвертирует domain.Recipe в RecipeResponse.
func RecipeFromDomain(r domain.Recipe) RecipeResponse {
	return RecipeResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		IsActive:    r.IsActive,
		Steps:       r.Steps,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Execution DTOs

// CreateExecutionRequest — запрос на запуск recipe.
type CreateExecutionRequest struct {
	Input domain.ExecutionInput `json:"input"`
}

// ExecutionResponse — ответ с execution.
type ExecutionResponse struct {
	ID          uuid.UUID             `json:"id"`
	RecipeID    uuid.UUID             `json:"recipe_id"`
	Status      string                `json:"status"`
	Input       domain.ExecutionInput `json:"input"`
	CurrentStep int                   `json:"current_step"`
	Progress    int                   `json:"progress"`
	Cost        float64               `json:"cost"`
	Confidence  *float64              `json:"confidence,omitempty"`
	Warning     bool                  `json:"warning,omitempty"`
	PreviewKey  string                `json:"preview_key,omitempty"`
	Error       string                `json:"error,omitempty"`
	StartedAt   *time.Time            `json:"started_at,omitempty"`
	FinishedAt  *time.Time            `json:"finished_at,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// ExecutionFromDomain конвертирует domain.Execution в ExecutionResponse.
func ExecutionFromDomain(e domain.Execution) ExecutionResponse {
	return ExecutionResponse{
		ID:          e.ID,
		RecipeID:    e.RecipeID,
		Status:      string(e.Status),
		Input:       e.Input,
		CurrentStep: e.CurrentStep,
		Progress:    e.Progress,
		Cost:        e.Cost,
		Confidence:  e.Confidence,
		Warning:     e.Warning,
		PreviewKey:  e.PreviewKey,
		Error:       e.Error,
		StartedAt:   e.StartedAt,
		FinishedAt:  e.FinishedAt,
		CreatedAt:   e.CreatedAt,
	}
}

// StepResult DTOs

// StepResultResponse — ответ с результатом шага.
type StepResultResponse struct {
	ID            uuid.UUID      `json:"id"`
	ExecutionID   uuid.UUID      `json:"execution_id"`
	StepIndex     int            `json:"step_index"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	InputPreview  string         `json:"input_preview,omitempty"`
	OutputPreview string         `json:"output_preview,omitempty"`
	OutputJSON    map[string]any `json:"output_json,omitempty"`
	ProviderRef   string         `json:"provider_ref,omitempty"`
	Error         string         `json:"error,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	FinishedAt    *time.Time     `json:"finished_at,omitempty"`
}

// StepResultFromDomain конвертирует domain.StepResult в StepResultResponse.
// Полный Output намеренно не отдаётся: для UI достаточно превью.
func StepResultFromDomain(sr domain.StepResult) StepResultResponse {
	return StepResultResponse{
		ID:            sr.ID,
		ExecutionID:   sr.ExecutionID,
		StepIndex:     sr.StepIndex,
		Name:          sr.Name,
		Type:          string(sr.Type),
		Status:        string(sr.Status),
		InputPreview:  sr.InputPreview,
		OutputPreview: sr.OutputPreview,
		OutputJSON:    sr.OutputJSON,
		ProviderRef:   sr.ProviderRef,
		Error:         sr.Error,
		StartedAt:     sr.StartedAt,
		FinishedAt:    sr.FinishedAt,
	}
}

// Cost DTOs

// CostEntryResponse — одна запись cost ledger.
type CostEntryResponse struct {
	StepIndex int     `json:"step_index"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model,omitempty"`
	Units     float64 `json:"units"`
	UnitKind  string  `json:"unit_kind"`
	Cost      float64 `json:"cost"`
	LatencyMs int64   `json:"latency_ms"`
}

// CostBreakdownResponse — постатейная разбивка стоимости execution.
type CostBreakdownResponse struct {
	ExecutionID uuid.UUID           `json:"execution_id"`
	Total       float64             `json:"total"`
	Entries     []CostEntryResponse `json:"entries"`
}

// CostEntryFromDomain конвертирует domain.CostEntry в CostEntryResponse.
func CostEntryFromDomain(e domain.CostEntry) CostEntryResponse {
	return CostEntryResponse{
		StepIndex: e.StepIndex,
		Provider:  e.Provider,
		Model:     e.Model,
		Units:     e.Units,
		UnitKind:  e.UnitKind,
		Cost:      e.Cost,
		LatencyMs: e.LatencyMs,
	}
}

// Schedule DTOs

// CreateScheduleRequest — запрос на создание schedule.
type CreateScheduleRequest struct {
	Name        string                `json:"name"`
	CronExpr    string                `json:"cron_expr,omitempty"`
	IntervalSec int                   `json:"interval_sec,omitempty"`
	Timezone    string                `json:"timezone,omitempty"`
	Enabled     bool                  `json:"enabled"`
	Input       domain.ExecutionInput `json:"input"`
}

// UpdateScheduleRequest — запрос на обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string                `json:"name,omitempty"`
	CronExpr    *string                `json:"cron_expr,omitempty"`
	IntervalSec *int                   `json:"interval_sec,omitempty"`
	Timezone    *string                `json:"timezone,omitempty"`
	Input       *domain.ExecutionInput `json:"input,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// ScheduleResponse — ответ с schedule.
type ScheduleResponse struct {
	ID              uuid.UUID             `json:"id"`
	RecipeID        uuid.UUID             `json:"recipe_id"`
	Name            string                `json:"name,omitempty"`
	CronExpr        string                `json:"cron_expr,omitempty"`
	IntervalSec     int                   `json:"interval_sec,omitempty"`
	Timezone        string                `json:"timezone"`
	Enabled         bool                  `json:"enabled"`
	NextDueAt       *time.Time            `json:"next_due_at,omitempty"`
	LastRunAt       *time.Time            `json:"last_run_at,omitempty"`
	LastExecutionID *uuid.UUID            `json:"last_execution_id,omitempty"`
	Input           domain.ExecutionInput `json:"input"`
	CreatedAt       time.Time             `json:"created_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
}

// ScheduleFromDomain конвертирует domain.Schedule в ScheduleResponse.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	if s == nil {
		return ScheduleResponse{}
	}
	return ScheduleResponse{
		ID:              s.ID,
		RecipeID:        s.RecipeID,
		Name:            s.Name,
		CronExpr:        s.CronExpr,
		IntervalSec:     s.IntervalSec,
		Timezone:        s.Timezone,
		Enabled:         s.Enabled,
		NextDueAt:       s.NextDueAt,
		LastRunAt:       s.LastRunAt,
		LastExecutionID: s.LastExecutionID,
		Input:           s.Input,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
