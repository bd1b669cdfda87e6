package runner

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/engine"
	"github.com/dan-auerbach/morana-sub000/internal/steps"
	"github.com/dan-auerbach/morana-sub000/internal/telemetry"
)

// confidenceWarningThreshold — порог confidence score, ниже которого
// execution помечается предупреждением.
const confidenceWarningThreshold = 0.7

// Run выполняет execution от PENDING до финального статуса.
//
// Контракт:
//   - Execution не в PENDING — no-op (идемпотентность повторной доставки).
//   - Отказ любого шага немедленно останавливает выполнение (fail-fast);
//     ретраев на уровне контроллера нет.
//   - Накопленная стоимость сохраняется при любом исходе, включая
//     отказ и отмену.
//   - Отмена кооперативная: флаг проверяется на границе шагов
//     перечитыванием execution из БД, шаг посреди вызова не прерывается.
func (r *Runner) Run(ctx context.Context, id uuid.UUID) error {
	ex, err := r.executions.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load execution: %w", err)
	}
	if ex.Status != domain.ExecutionStatusPending {
		r.logger.Debug("execution not pending, skipping",
			"execution_id", id, "status", ex.Status)
		return nil
	}

	recipe, err := r.recipes.GetByID(ctx, ex.RecipeID)
	if err != nil {
		return r.failEarly(ctx, ex, fmt.Sprintf("load recipe: %v", err))
	}
	if len(recipe.Steps) == 0 {
		return r.failEarly(ctx, ex, "recipe has no steps")
	}

	logger := telemetry.WithRecipeID(telemetry.WithExecutionID(r.logger, id.String()), recipe.ID.String())

	ex.MarkRunning()
	if err := r.executions.Update(ctx, ex); err != nil {
		return fmt.Errorf("mark running: %w", err)
	}
	telemetry.ExecutionsStarted.Inc()
	logger.Info("execution started", "steps", len(recipe.Steps))

	ec := engine.NewContext(ex.Input.SeedText())
	total := len(recipe.Steps)

	for i := range recipe.Steps {
		step := &recipe.Steps[i]
		stepLogger := telemetry.WithStep(logger, step.Index, string(step.Type))

		// Граница шага — единственное место проверки отмены.
		cancelled, err := r.cancelRequested(ctx, ex.ID)
		if err != nil {
			return err
		}
		if cancelled {
			ex.MarkCancelled()
			if err := r.executions.Update(ctx, ex); err != nil {
				return fmt.Errorf("mark cancelled: %w", err)
			}
			r.notify(ctx, ex)
			telemetry.ExecutionsFinished.WithLabelValues(string(ex.Status)).Inc()
			logger.Info("execution cancelled", "at_step", step.Index, "cost", ex.Cost)
			return nil
		}

		ex.CurrentStep = step.Index
		ex.Progress = (step.Index*100 + total/2) / total
		if err := r.executions.Update(ctx, ex); err != nil {
			return fmt.Errorf("update progress: %w", err)
		}

		sr := r.newStepResult(ex, step, ec)
		if err := r.stepResults.Create(ctx, sr); err != nil {
			return fmt.Errorf("create step result: %w", err)
		}

		// Условие — пропуск не трогает ни PreviousOutput, ни Steps.
		if !engine.EvaluateCondition(step.Condition, ec) {
			sr.MarkSkipped()
			if err := r.stepResults.Update(ctx, sr); err != nil {
				return fmt.Errorf("mark skipped: %w", err)
			}
			telemetry.StepsFinished.WithLabelValues(string(step.Type), string(sr.Status)).Inc()
			stepLogger.Info("step skipped")
			continue
		}

		stepInput := ec.PreviousOutput
		result, execErr := r.executeStep(ctx, ex, step, ec)

		// Стоимость записывается до решения об исходе шага:
		// она не теряется и при отказе.
		if result != nil && result.Cost != nil {
			r.recordCost(ctx, ex, result.Cost, stepLogger)
		}

		if execErr != nil {
			r.failStep(ctx, ex, step, sr, execErr, stepLogger)
			return nil
		}

		// Skip-равнозначный исход исполнителя (готовая расшифровка,
		// ненастроенная публикация): как и пропуск по условию,
		// контекст не изменяется.
		if result.Skipped {
			sr.MarkSkipped()
			if result.SkipReason != "" {
				sr.Output = result.SkipReason
				sr.OutputPreview = result.SkipReason
			}
			if err := r.stepResults.Update(ctx, sr); err != nil {
				return fmt.Errorf("mark skipped: %w", err)
			}
			telemetry.StepsFinished.WithLabelValues(string(step.Type), string(sr.Status)).Inc()
			stepLogger.Info("step skipped", "reason", result.SkipReason)
			continue
		}

		sr.InputHash = contentHash(stepInput)
		sr.OutputHash = contentHash(result.Text)
		sr.MarkDone(result.Text, result.JSON, result.ProviderRef)
		if err := r.stepResults.Update(ctx, sr); err != nil {
			return fmt.Errorf("mark step done: %w", err)
		}
		telemetry.StepsFinished.WithLabelValues(string(step.Type), string(sr.Status)).Inc()

		ec.AddStepOutput(step.Index, result.Text, result.JSON)

		if err := r.executions.Update(ctx, ex); err != nil {
			return fmt.Errorf("persist cost: %w", err)
		}
		stepLogger.Info("step done", "duration", sr.Duration(), "cost", ex.Cost)
	}

	r.extractMetadata(ex, ec)
	r.buildPreview(ctx, ex, recipe, ec, logger)

	ex.MarkDone()
	if err := r.executions.Update(ctx, ex); err != nil {
		return fmt.Errorf("mark done: %w", err)
	}
	r.notify(ctx, ex)
	telemetry.ExecutionsFinished.WithLabelValues(string(ex.Status)).Inc()
	logger.Info("execution done", "cost", ex.Cost, "duration", ex.Duration())
	return nil
}

// cancelRequested перечитывает execution и возвращает, запрошена ли отмена.
func (r *Runner) cancelRequested(ctx context.Context, id uuid.UUID) (bool, error) {
	fresh, err := r.executions.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("reload execution: %w", err)
	}
	return fresh.CancelRequested || fresh.Status == domain.ExecutionStatusCancelled, nil
}

// newStepResult создаёт запись результата шага в статусе RUNNING.
func (r *Runner) newStepResult(ex *domain.Execution, step *domain.Step, ec *engine.Context) *domain.StepResult {
	now := time.Now()

	preview := domain.Preview(ec.PreviousOutput)
	if strings.TrimSpace(preview) == "" && !ex.Input.IsTextual() {
		preview = domain.BinaryInputPreview
	}

	return &domain.StepResult{
		ID:           uuid.New(),
		ExecutionID:  ex.ID,
		StepIndex:    step.Index,
		Name:         step.Name,
		Type:         step.Type,
		Status:       domain.StepResultStatusRunning,
		InputPreview: preview,
		StartedAt:    &now,
		CreatedAt:    now,
	}
}

// executeStep диспетчеризует шаг в исполнителя и замеряет длительность.
func (r *Runner) executeStep(ctx context.Context, ex *domain.Execution, step *domain.Step, ec *engine.Context) (*steps.Result, error) {
	executor, err := r.registry.Get(step.Type)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result, err := executor.Execute(ctx, &steps.Request{
		Execution: ex,
		Step:      step,
		Context:   ec,
	})
	telemetry.StepDuration.WithLabelValues(string(step.Type)).Observe(time.Since(start).Seconds())
	return result, err
}

// recordCost записывает стоимость вызова провайдера в ledger
// и складывает её в накопленную стоимость execution.
func (r *Runner) recordCost(ctx context.Context, ex *domain.Execution, entry *domain.CostEntry, logger *slog.Logger) {
	if err := r.costs.Create(ctx, entry); err != nil {
		// Потеря записи ledger хуже двойного логирования: сумма в
		// execution всё равно продвигается.
		logger.Error("failed to record cost entry", "error", err)
	}
	ex.Cost += entry.Cost
	telemetry.ProviderCost.WithLabelValues(entry.Provider).Add(entry.Cost)
}

// failStep останавливает execution после отказа шага (fail-fast).
func (r *Runner) failStep(ctx context.Context, ex *domain.Execution, step *domain.Step, sr *domain.StepResult, cause error, logger *slog.Logger) {
	sr.MarkError(cause.Error())
	if err := r.stepResults.Update(ctx, sr); err != nil {
		logger.Error("failed to persist step error", "error", err)
	}
	telemetry.StepsFinished.WithLabelValues(string(step.Type), string(sr.Status)).Inc()

	ex.MarkError(fmt.Sprintf("Step %d (%s) failed: %v", step.Index+1, step.Name, cause))
	if err := r.executions.Update(ctx, ex); err != nil {
		logger.Error("failed to persist execution error", "error", err)
	}
	r.notify(ctx, ex)
	telemetry.ExecutionsFinished.WithLabelValues(string(ex.Status)).Inc()
	logger.Error("execution failed", "error", ex.Error, "cost", ex.Cost)
}

// failEarly помечает execution ошибкой до начала шагового цикла.
func (r *Runner) failEarly(ctx context.Context, ex *domain.Execution, msg string) error {
	ex.MarkError(msg)
	if err := r.executions.Update(ctx, ex); err != nil {
		return fmt.Errorf("mark error: %w", err)
	}
	r.notify(ctx, ex)
	telemetry.ExecutionsFinished.WithLabelValues(string(ex.Status)).Inc()
	return nil
}

// notify отправляет best-effort уведомление о завершении.
func (r *Runner) notify(ctx context.Context, ex *domain.Execution) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.PublishExecutionCompleted(ctx, ex.ID.String(), string(ex.Status), ex.Error); err != nil {
		r.logger.Warn("completion notification failed",
			"execution_id", ex.ID, "error", err)
	}
}

// extractMetadata извлекает бизнес-метаданные из structured-выводов шагов:
// confidence score и вердикт проверки фактов. Отсутствие метаданных —
// не ошибка.
func (r *Runner) extractMetadata(ex *domain.Execution, ec *engine.Context) {
	fact := ec.FindStepJSON(func(m map[string]any) bool {
		_, ok := m["confidence_score"]
		return ok
	})
	if fact == nil {
		return
	}

	score, ok := fact["confidence_score"].(float64)
	if !ok {
		return
	}
	ex.Confidence = &score

	verdict, _ := fact["verdict"].(string)
	ex.Warning = (verdict != "" && verdict != "pass") || score < confidenceWarningThreshold
}

// buildPreview сохраняет публичное HTML-превью, если recipe содержит
// шаг output-format. Отказ превью не меняет исход execution.
func (r *Runner) buildPreview(ctx context.Context, ex *domain.Execution, recipe *domain.Recipe, ec *engine.Context, logger *slog.Logger) {
	if r.store == nil {
		return
	}

	html := findPreviewHTML(recipe, ec)
	if html == "" {
		return
	}

	key := fmt.Sprintf("previews/%s.html", ex.ID)
	if err := r.store.Put(ctx, key, []byte(html), "text/html; charset=utf-8"); err != nil {
		logger.Warn("failed to store preview", "error", err)
		return
	}
	ex.PreviewKey = key
}

// findPreviewHTML возвращает HTML-представление из вывода последнего
// шага output-format, если оно есть.
func findPreviewHTML(recipe *domain.Recipe, ec *engine.Context) string {
	for i := len(recipe.Steps) - 1; i >= 0; i-- {
		if recipe.Steps[i].Type != domain.StepOutputFormat {
			continue
		}
		out := ec.StepJSON(recipe.Steps[i].Index)
		if out == nil {
			continue
		}
		if html, _ := out["html"].(string); html != "" {
			return html
		}
		if article, ok := out["article"].(map[string]any); ok {
			if html, _ := article["body_html"].(string); html != "" {
				return html
			}
		}
	}
	return ""
}

// contentHash возвращает SHA-256 содержимого в hex.
func contentHash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
