package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// RecipeResponse — recipe из API.
type RecipeResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	IsActive    bool              `json:"is_active"`
	Steps       []json.RawMessage `json:"steps"`
	CreatedAt   string            `json:"created_at"`
	UpdatedAt   string            `json:"updated_at"`
}

// ExecutionResponse — execution из API.
type ExecutionResponse struct {
	ID          string         `json:"id"`
	RecipeID    string         `json:"recipe_id"`
	Status      string         `json:"status"`
	Input       map[string]any `json:"input,omitempty"`
	CurrentStep int            `json:"current_step"`
	Progress    int            `json:"progress"`
	Cost        float64        `json:"cost"`
	Confidence  *float64       `json:"confidence,omitempty"`
	Warning     bool           `json:"warning,omitempty"`
	PreviewKey  string         `json:"preview_key,omitempty"`
	Error       string         `json:"error,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	FinishedAt  string         `json:"finished_at,omitempty"`
	CreatedAt   string         `json:"created_at"`
}

// StepResultResponse — результат шага из API.
type StepResultResponse struct {
	ID            string         `json:"id"`
	ExecutionID   string         `json:"execution_id"`
	StepIndex     int            `json:"step_index"`
	Name          string         `json:"name"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	InputPreview  string         `json:"input_preview,omitempty"`
	OutputPreview string         `json:"output_preview,omitempty"`
	OutputJSON    map[string]any `json:"output_json,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// CostEntryResponse — запись cost ledger из API.
type CostEntryResponse struct {
	StepIndex int     `json:"step_index"`
	Provider  string  `json:"provider"`
	Model     string  `json:"model,omitempty"`
	Units     float64 `json:"units"`
	UnitKind  string  `json:"unit_kind"`
	Cost      float64 `json:"cost"`
	LatencyMs int64   `json:"latency_ms"`
}

// CostBreakdownResponse — разбивка стоимости execution из API.
type CostBreakdownResponse struct {
	ExecutionID string              `json:"execution_id"`
	Total       float64             `json:"total"`
	Entries     []CostEntryResponse `json:"entries"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string         `json:"id"`
	RecipeID    string         `json:"recipe_id"`
	Name        string         `json:"name,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone"`
	Enabled     bool           `json:"enabled"`
	NextDueAt   string         `json:"next_due_at,omitempty"`
	LastRunAt   string         `json:"last_run_at,omitempty"`
	Input       map[string]any `json:"input,omitempty"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

// --- Request types ---

// UpdateRecipeRequest — обновление recipe.
type UpdateRecipeRequest struct {
	Name        *string            `json:"name,omitempty"`
	Description *string            `json:"description,omitempty"`
	IsActive    *bool              `json:"is_active,omitempty"`
	Steps       *[]json.RawMessage `json:"steps,omitempty"`
}

// CreateExecutionRequest — создание execution.
type CreateExecutionRequest struct {
	Input map[string]any `json:"input"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string         `json:"name"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IntervalSec int            `json:"interval_sec,omitempty"`
	Timezone    string         `json:"timezone,omitempty"`
	Enabled     bool           `json:"enabled"`
	Input       map[string]any `json:"input,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListExecutionsOpts — параметры фильтрации executions.
type ListExecutionsOpts struct {
	RecipeID string
	Status   string
	Limit    int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Morana API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Recipes ---

// ListRecipes возвращает все recipes.
func (c *Client) ListRecipes() ([]RecipeResponse, error) {
	var recipes []RecipeResponse
	err := c.list("/api/v1/recipes", nil, &recipes)
	return recipes, err
}

// CreateRecipe создаёт recipe из JSON-документа.
func (c *Client) CreateRecipe(body json.RawMessage) (*RecipeResponse, error) {
	var recipe RecipeResponse
	err := c.post("/api/v1/recipes", body, &recipe)
	return &recipe, err
}

// GetRecipe возвращает recipe по ID.
func (c *Client) GetRecipe(id string) (*RecipeResponse, error) {
	var recipe RecipeResponse
	err := c.get("/api/v1/recipes/"+id, &recipe)
	return &recipe, err
}

// UpdateRecipe обновляет recipe.
func (c *Client) UpdateRecipe(id string, req UpdateRecipeRequest) (*RecipeResponse, error) {
	var recipe RecipeResponse
	err := c.put("/api/v1/recipes/"+id, req, &recipe)
	return &recipe, err
}

// DeleteRecipe удаляет recipe.
func (c *Client) DeleteRecipe(id string) error {
	return c.delete("/api/v1/recipes/" + id)
}

// --- Executions ---

// ListExecutions возвращает список executions с фильтрацией.
func (c *Client) ListExecutions(opts ListExecutionsOpts) ([]ExecutionResponse, error) {
	params := url.Values{}
	if opts.RecipeID != "" {
		params.Set("recipe_id", opts.RecipeID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var executions []ExecutionResponse
	err := c.list("/api/v1/executions", params, &executions)
	return executions, err
}

// CreateExecution запускает recipe.
func (c *Client) CreateExecution(recipeID string, req CreateExecutionRequest) (*ExecutionResponse, error) {
	var ex ExecutionResponse
	err := c.post("/api/v1/recipes/"+recipeID+"/executions", req, &ex)
	return &ex, err
}

// GetExecution возвращает execution по ID.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var ex ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &ex)
	return &ex, err
}

// CancelExecution отменяет execution.
func (c *Client) CancelExecution(id string) (*ExecutionResponse, error) {
	var ex ExecutionResponse
	err := c.post("/api/v1/executions/"+id+"/cancel", nil, &ex)
	return &ex, err
}

// ListExecutionSteps возвращает результаты шагов execution.
func (c *Client) ListExecutionSteps(executionID string) ([]StepResultResponse, error) {
	var steps []StepResultResponse
	err := c.list("/api/v1/executions/"+executionID+"/steps", nil, &steps)
	return steps, err
}

// GetExecutionCosts возвращает разбивку стоимости execution.
func (c *Client) GetExecutionCosts(executionID string) (*CostBreakdownResponse, error) {
	var breakdown CostBreakdownResponse
	err := c.get("/api/v1/executions/"+executionID+"/costs", &breakdown)
	return &breakdown, err
}

// --- Schedules ---

// ListSchedules возвращает все schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для recipe.
func (c *Client) CreateSchedule(recipeID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/recipes/"+recipeID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
