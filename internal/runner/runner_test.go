package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
	"github.com/dan-auerbach/morana-sub000/internal/steps"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// --- In-memory stores ---

type memRecipes struct {
	recipes map[uuid.UUID]domain.Recipe
}

func (m *memRecipes) GetByID(_ context.Context, id uuid.UUID) (*domain.Recipe, error) {
	r, ok := m.recipes[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &r, nil
}

type memExecutions struct {
	mu         sync.Mutex
	executions map[uuid.UUID]domain.Execution

	// progress — последовательность различных значений Progress,
	// прошедших через Update.
	progress []int
}

func (m *memExecutions) GetByID(_ context.Context, id uuid.UUID) (*domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex, ok := m.executions[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &ex, nil
}

func (m *memExecutions) Update(_ context.Context, ex *domain.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.executions[ex.ID]
	// Флаг отмены принадлежит внешней стороне, не runner'у.
	cancel := stored.CancelRequested
	m.executions[ex.ID] = *ex
	if n := len(m.progress); n == 0 || m.progress[n-1] != ex.Progress {
		m.progress = append(m.progress, ex.Progress)
	}
	if cancel {
		e := m.executions[ex.ID]
		e.CancelRequested = true
		m.executions[ex.ID] = e
	}
	return nil
}

func (m *memExecutions) ListPending(_ context.Context, _ int) ([]domain.Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var pending []domain.Execution
	for _, ex := range m.executions {
		if ex.Status == domain.ExecutionStatusPending {
			pending = append(pending, ex)
		}
	}
	return pending, nil
}

func (m *memExecutions) requestCancel(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ex := m.executions[id]
	ex.CancelRequested = true
	m.executions[id] = ex
}

type memStepResults struct {
	mu      sync.Mutex
	results map[uuid.UUID]domain.StepResult
	order   []uuid.UUID

	// onDone вызывается после перевода результата в финальный статус —
	// тесты вклиниваются между шагами.
	onDone func(sr *domain.StepResult)
}

func newMemStepResults() *memStepResults {
	return &memStepResults{results: make(map[uuid.UUID]domain.StepResult)}
}

func (m *memStepResults) Create(_ context.Context, sr *domain.StepResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[sr.ID] = *sr
	m.order = append(m.order, sr.ID)
	return nil
}

func (m *memStepResults) Update(_ context.Context, sr *domain.StepResult) error {
	m.mu.Lock()
	m.results[sr.ID] = *sr
	m.mu.Unlock()
	if m.onDone != nil && sr.Status != domain.StepResultStatusRunning {
		m.onDone(sr)
	}
	return nil
}

func (m *memStepResults) all() []domain.StepResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.StepResult, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.results[id])
	}
	return out
}

type memCosts struct {
	mu      sync.Mutex
	entries []domain.CostEntry
}

func (m *memCosts) Create(_ context.Context, entry *domain.CostEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memCosts) total() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var sum float64
	for _, e := range m.entries {
		sum += e.Cost
	}
	return sum
}

type memNotifier struct {
	mu     sync.Mutex
	events []string
}

func (m *memNotifier) PublishExecutionCompleted(_ context.Context, executionID, status, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, status)
	return nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: make(map[string][]byte)}
}

func (s *memStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return nil
}

func (s *memStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *memStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

// --- Fake providers ---

type scriptedGenerator struct {
	mu      sync.Mutex
	outputs []string
	models  []string
	prompts []string
	calls   int
}

func (g *scriptedGenerator) Generate(_ context.Context, req provider.GenerateRequest) (*provider.Generation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.models = append(g.models, req.Model)
	g.prompts = append(g.prompts, req.Prompt)

	text := "generated"
	if g.calls < len(g.outputs) {
		text = g.outputs[g.calls]
	}
	g.calls++
	return &provider.Generation{Text: text, TokensIn: 100, TokensOut: 50, LatencyMs: 3, RefID: fmt.Sprintf("gen-%d", g.calls)}, nil
}

type stuckBackend struct{}

func (stuckBackend) Submit(_ context.Context, _ provider.SubmitRequest) (*provider.GenerationJob, error) {
	return &provider.GenerationJob{ID: "job-stuck"}, nil
}
func (stuckBackend) Status(_ context.Context, _ *provider.GenerationJob) (string, error) {
	return provider.JobStatusQueued, nil
}
func (stuckBackend) Result(_ context.Context, _ *provider.GenerationJob) (*provider.GenerationResult, error) {
	return nil, fmt.Errorf("result must not be fetched")
}
func (stuckBackend) Download(_ context.Context, _ string) ([]byte, error) {
	return nil, fmt.Errorf("download must not be called")
}

// --- Harness ---

type harness struct {
	runner      *Runner
	recipes     *memRecipes
	executions  *memExecutions
	stepResults *memStepResults
	costs       *memCosts
	notifier    *memNotifier
	store       *memStore
}

func newHarness(t *testing.T, recipe domain.Recipe, registry *steps.Registry, input domain.ExecutionInput) (*harness, uuid.UUID) {
	t.Helper()

	ex := domain.Execution{
		ID:        uuid.New(),
		RecipeID:  recipe.ID,
		Status:    domain.ExecutionStatusPending,
		Input:     input,
		CreatedAt: time.Now(),
	}

	h := &harness{
		recipes:     &memRecipes{recipes: map[uuid.UUID]domain.Recipe{recipe.ID: recipe}},
		executions:  &memExecutions{executions: map[uuid.UUID]domain.Execution{ex.ID: ex}},
		stepResults: newMemStepResults(),
		costs:       &memCosts{},
		notifier:    &memNotifier{},
		store:       newMemStore(),
	}
	h.runner = New(Config{
		Recipes:     h.recipes,
		Executions:  h.executions,
		StepResults: h.stepResults,
		Costs:       h.costs,
		Registry:    registry,
		Store:       h.store,
		Notifier:    h.notifier,
	})
	return h, ex.ID
}

func (h *harness) execution(t *testing.T, id uuid.UUID) *domain.Execution {
	t.Helper()
	ex, err := h.executions.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("load execution: %v", err)
	}
	return ex
}

func textStep(index int, name, prompt string) domain.Step {
	return domain.Step{
		Index: index,
		Name:  name,
		Type:  domain.StepTextGeneration,
		Config: domain.StepConfig{Text: &domain.TextConfig{
			Model:  "default-model",
			Prompt: prompt,
		}},
	}
}

func newRecipe(steps ...domain.Step) domain.Recipe {
	return domain.Recipe{
		ID:       uuid.New(),
		Name:     "test-recipe",
		IsActive: true,
		Steps:    steps,
	}
}

// --- End-to-end scenarios ---

// Сценарий: вход уже расшифрован → transcription пропускается быстрым
// путём, генерация работает с текстом входа, format рендерит Markdown.
func TestRun_TranscriptFastPathPipeline(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"# Title\n\nLead here.\n\nBody."}}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTranscriptionExecutor(nil, newMemStore()))
	registry.Register(steps.NewTextExecutor(gen, nil, nil))
	registry.Register(steps.NewFormatExecutor())

	recipe := newRecipe(
		domain.Step{Index: 0, Name: "stt", Type: domain.StepTranscription,
			Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}}},
		textStep(1, "write", "Expand: {{input}}"),
		domain.Step{Index: 2, Name: "render", Type: domain.StepOutputFormat,
			Config: domain.StepConfig{Format: &domain.FormatConfig{Formats: []string{"markdown", "html"}}}},
	)

	h, id := newHarness(t, recipe, registry, domain.ExecutionInput{TranscriptText: "hello"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusDone {
		t.Fatalf("expected DONE, got %s (%s)", ex.Status, ex.Error)
	}
	if ex.Progress != 100 {
		t.Errorf("expected progress 100, got %d", ex.Progress)
	}

	results := h.stepResults.all()
	if len(results) != 3 {
		t.Fatalf("expected 3 step results, got %d", len(results))
	}
	if results[0].Status != domain.StepResultStatusSkipped {
		t.Errorf("transcription must be skipped, got %s", results[0].Status)
	}
	if results[1].Status != domain.StepResultStatusDone || results[2].Status != domain.StepResultStatusDone {
		t.Errorf("later steps must be done: %s, %s", results[1].Status, results[2].Status)
	}

	// Генерация получила вход execution, а не вывод пропущенного шага.
	if gen.prompts[0] != "Expand: hello" {
		t.Errorf("unexpected prompt: %q", gen.prompts[0])
	}

	// Превью собрано из HTML-представления format-шага.
	if ex.PreviewKey == "" {
		t.Error("expected preview key")
	} else if _, err := h.store.Get(context.Background(), ex.PreviewKey); err != nil {
		t.Errorf("preview not stored: %v", err)
	}

	if h.notifier.events[len(h.notifier.events)-1] != "DONE" {
		t.Errorf("unexpected notifications: %v", h.notifier.events)
	}
}

// Сценарий: классифицирующий шаг выбирает модель для следующего.
func TestRun_AutoModelSelection(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"complexity":"high"}`, "final text"}}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTextExecutor(gen, nil, nil))

	classify := textStep(0, "classify", "Classify: {{original_input}}")
	write := domain.Step{
		Index: 1,
		Name:  "write",
		Type:  domain.StepTextGeneration,
		Config: domain.StepConfig{Text: &domain.TextConfig{
			Model:              "A",
			ModelStrategy:      "auto",
			ModelStrategyStep:  0,
			ModelStrategyField: "complexity",
			ModelStrategyMap:   map[string]string{"low": "A", "high": "B"},
			Prompt:             "Write about {{original_input}}",
		}},
	}

	h, id := newHarness(t, newRecipe(classify, write), registry, domain.ExecutionInput{Text: "quantum computing"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusDone {
		t.Fatalf("expected DONE, got %s (%s)", ex.Status, ex.Error)
	}
	if len(gen.models) != 2 || gen.models[1] != "B" {
		t.Errorf("auto strategy must resolve model B, got %v", gen.models)
	}
	// Стоимость — сумма обоих вызовов.
	if ex.Cost != h.costs.total() || len(h.costs.entries) != 2 {
		t.Errorf("cost mismatch: execution %v, ledger %v", ex.Cost, h.costs.total())
	}
}

// Сценарий: video без предшествующего текста → fail-fast с именем шага.
func TestRun_VideoWithoutPromptFails(t *testing.T) {
	registry := steps.NewRegistry()
	registry.Register(steps.NewVideoExecutor(stuckBackend{}, newMemStore()))

	recipe := newRecipe(domain.Step{
		Index: 0, Name: "clip", Type: domain.StepVideo,
		Config: domain.StepConfig{Video: &domain.VideoConfig{DurationSeconds: 5}},
	})

	h, id := newHarness(t, recipe, registry, domain.ExecutionInput{})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusError {
		t.Fatalf("expected ERROR, got %s", ex.Status)
	}
	if !strings.HasPrefix(ex.Error, "Step 1 (clip) failed:") || !strings.Contains(ex.Error, "requires a prompt") {
		t.Errorf("unexpected error message: %q", ex.Error)
	}

	results := h.stepResults.all()
	if len(results) != 1 || results[0].Status != domain.StepResultStatusError {
		t.Errorf("expected single errored step result, got %+v", results)
	}
}

// Сценарий: опрос очереди никогда не завершается → таймаут, артефактов нет.
func TestRun_PollTimeoutFails(t *testing.T) {
	image := steps.NewImageExecutor(stuckBackend{}, newMemStore())
	image.Timeout = time.Nanosecond

	registry := steps.NewRegistry()
	registry.Register(image)

	recipe := newRecipe(domain.Step{
		Index: 0, Name: "cover", Type: domain.StepImage,
		Config: domain.StepConfig{Image: &domain.ImageConfig{}},
	})

	h, id := newHarness(t, recipe, registry, domain.ExecutionInput{Text: "закат над морем"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusError {
		t.Fatalf("expected ERROR, got %s", ex.Status)
	}
	if !strings.Contains(ex.Error, "timed out") {
		t.Errorf("expected timeout message, got %q", ex.Error)
	}
	if len(h.store.objects) != 0 {
		t.Errorf("no artifact must be persisted, got %v", h.store.objects)
	}
}

// Сценарий: отмена между шагами → CANCELLED, второй шаг не начат,
// стоимость отражает только первый шаг.
func TestRun_CancellationBetweenSteps(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{"draft", "must not run"}}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTextExecutor(gen, nil, nil))

	recipe := newRecipe(
		textStep(0, "draft", "Draft: {{original_input}}"),
		textStep(1, "polish", "Polish: {{input}}"),
	)

	h, id := newHarness(t, recipe, registry, domain.ExecutionInput{Text: "тема"})

	h.stepResults.onDone = func(sr *domain.StepResult) {
		if sr.StepIndex == 0 && sr.Status == domain.StepResultStatusDone {
			h.executions.requestCancel(id)
		}
	}

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s (%s)", ex.Status, ex.Error)
	}

	results := h.stepResults.all()
	if len(results) != 1 {
		t.Fatalf("step 1 must have no StepResult, got %d results", len(results))
	}
	if gen.calls != 1 {
		t.Errorf("second generation must not run, calls=%d", gen.calls)
	}
	if len(h.costs.entries) != 1 || ex.Cost != h.costs.entries[0].Cost {
		t.Errorf("cost must reflect only step 0: %v vs %v", ex.Cost, h.costs.entries)
	}
}

// Прогресс округляется к ближайшему проценту: на трёх шагах
// последовательность 0 → 33 → 67 → 100, а не 0 → 33 → 66.
func TestRun_ProgressRounding(t *testing.T) {
	gen := &scriptedGenerator{}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTextExecutor(gen, nil, nil))

	recipe := newRecipe(
		textStep(0, "a", "A: {{input}}"),
		textStep(1, "b", "B: {{input}}"),
		textStep(2, "c", "C: {{input}}"),
	)

	h, id := newHarness(t, recipe, registry, domain.ExecutionInput{Text: "тема"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []int{0, 33, 67, 100}
	got := h.executions.progress
	if len(got) != len(want) {
		t.Fatalf("unexpected progress sequence: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected progress sequence: %v, want %v", got, want)
		}
	}
}

// Повторная доставка выполненного execution — no-op.
func TestRun_NonPendingIsNoop(t *testing.T) {
	registry := steps.NewRegistry()
	h, id := newHarness(t, newRecipe(textStep(0, "s", "{{input}}")), registry, domain.ExecutionInput{Text: "x"})

	ex := h.execution(t, id)
	ex.MarkDone()
	if err := h.executions.Update(context.Background(), ex); err != nil {
		t.Fatal(err)
	}

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(h.stepResults.all()) != 0 {
		t.Error("no steps must run for a finished execution")
	}
}

// Условие с false-исходом пропускает шаг, не трогая контекст.
func TestRun_ConditionSkipKeepsContext(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"publish":false}`, "must not run", "after skip: {{step.1.text}}"}}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTextExecutor(gen, nil, nil))

	gate := textStep(0, "gate", "Decide: {{original_input}}")
	guarded := textStep(1, "guarded", "unreachable")
	guarded.Condition = &domain.Condition{SourceStep: 0, Field: "publish", Operator: "eq", Value: true}
	after := textStep(2, "after", "After: {{step.1.text}}|{{input}}")

	h, id := newHarness(t, newRecipe(gate, guarded, after), registry, domain.ExecutionInput{Text: "тема"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Status != domain.ExecutionStatusDone {
		t.Fatalf("expected DONE, got %s (%s)", ex.Status, ex.Error)
	}

	results := h.stepResults.all()
	if results[1].Status != domain.StepResultStatusSkipped {
		t.Fatalf("guarded step must be skipped, got %s", results[1].Status)
	}
	if results[1].Output != domain.SkippedOutput {
		t.Errorf("unexpected skip marker: %q", results[1].Output)
	}

	// Ссылка на пропущенный шаг — пустая строка; {{input}} — вывод
	// последнего выполненного шага, не пропущенного.
	if gen.prompts[1] != "After: |"+`{"publish":false}` {
		t.Errorf("skipped step leaked into context: %q", gen.prompts[1])
	}
}

// Метаданные: confidence score и вердикт проверки фактов.
func TestRun_ExtractsConfidenceMetadata(t *testing.T) {
	gen := &scriptedGenerator{outputs: []string{`{"confidence_score":0.55,"verdict":"fail"}`}}

	registry := steps.NewRegistry()
	registry.Register(steps.NewTextExecutor(gen, nil, nil))

	h, id := newHarness(t, newRecipe(textStep(0, "factcheck", "Check: {{input}}")), registry, domain.ExecutionInput{Text: "тема"})

	if err := h.runner.Run(context.Background(), id); err != nil {
		t.Fatalf("run: %v", err)
	}

	ex := h.execution(t, id)
	if ex.Confidence == nil || *ex.Confidence != 0.55 {
		t.Errorf("confidence not extracted: %v", ex.Confidence)
	}
	if !ex.Warning {
		t.Error("low confidence must set warning")
	}
}
