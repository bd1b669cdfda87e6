package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepResult — результат выполнения одного шага execution.
//
// Ровно одна запись на пару (execution, step index); после создания
// запись только дополняется до финального статуса, никогда не удаляется.
type StepResult struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExecutionID — ссылка на родительский execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// StepIndex — индекс шага в recipe.
	StepIndex int `json:"step_index"`

	// Name — имя шага (копия Step.Name для удобства).
	Name string `json:"name"`

	// Type — тип шага.
	Type StepType `json:"type"`

	// Status — текущий статус выполнения шага.
	Status StepResultStatus `json:"status"`

	// InputPreview — первые 500 символов входа шага
	// (или фиксированная заглушка для нетекстовых входов).
	InputPreview string `json:"input_preview,omitempty"`

	// OutputPreview — первые 500 символов вывода шага.
	OutputPreview string `json:"output_preview,omitempty"`

	// Output — полный текстовый вывод шага.
	Output string `json:"output,omitempty"`

	// OutputJSON — распарсенный structured-вывод, если вывод JSON-образный.
	OutputJSON map[string]any `json:"output_json,omitempty"`

	// InputHash — SHA-256 входа шага (для аудита).
	InputHash string `json:"input_hash,omitempty"`

	// OutputHash — SHA-256 вывода шага.
	OutputHash string `json:"output_hash,omitempty"`

	// ProviderRef — ссылка на вызов провайдера (для cost lookup).
	ProviderRef string `json:"provider_ref,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// StartedAt — время начала выполнения.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения шага.
func (r *StepResult) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// MarkDone переводит результат в DONE с выводом шага.
func (r *StepResult) MarkDone(output string, outputJSON map[string]any, providerRef string) {
	now := time.Now()
	r.Status = StepResultStatusDone
	r.Output = output
	r.OutputPreview = Preview(output)
	r.OutputJSON = outputJSON
	r.ProviderRef = providerRef
	r.FinishedAt = &now
}

// MarkError переводит результат в ERROR с текстом ошибки.
func (r *StepResult) MarkError(errMsg string) {
	now := time.Now()
	r.Status = StepResultStatusError
	r.Error = errMsg
	r.FinishedAt = &now
}

// MarkSkipped переводит результат в SKIPPED с фиксированной заглушкой.
func (r *StepResult) MarkSkipped() {
	now := time.Now()
	r.Status = StepResultStatusSkipped
	r.Output = SkippedOutput
	r.OutputPreview = SkippedOutput
	r.FinishedAt = &now
}

// SkippedOutput — фиксированная заглушка вывода пропущенного шага.
const SkippedOutput = "Skipped (condition not met)"

// PreviewLen — длина превью входа/вывода шага.
const PreviewLen = 500

// BinaryInputPreview — заглушка превью для нетекстовых входов.
const BinaryInputPreview = "[binary input]"

// Preview обрезает строку до PreviewLen символов (по рунам).
func Preview(s string) string {
	runes := []rune(s)
	if len(runes) <= PreviewLen {
		return s
	}
	return string(runes[:PreviewLen])
}
