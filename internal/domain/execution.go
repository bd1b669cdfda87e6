package domain

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionInput — входные данные одного запуска recipe.
//
// Вход свободной формы: текст, готовая расшифровка, ссылка на аудио
// в object storage или по URL, ссылка на изображение.
type ExecutionInput struct {
	// Text — исходный текст (тема, бриф).
	Text string `json:"text,omitempty"`

	// TranscriptText — готовая расшифровка. Явный признак режима
	// "вход уже расшифрован": шаг transcription использует её дословно.
	TranscriptText string `json:"transcript_text,omitempty"`

	// AudioKey — ключ аудиофайла в object storage.
	AudioKey string `json:"audio_key,omitempty"`

	// AudioURL — внешний URL аудиофайла (альтернатива AudioKey).
	AudioURL string `json:"audio_url,omitempty"`

	// ImageKey — ключ изображения в object storage (для мультимодальных шагов).
	ImageKey string `json:"image_key,omitempty"`
}

// SeedText возвращает текст, которым инициализируется накопленный вывод.
// Приоритет: готовая расшифровка, затем свободный текст.
func (in *ExecutionInput) SeedText() string {
	if in.TranscriptText != "" {
		return in.TranscriptText
	}
	return in.Text
}

// IsTextual возвращает true, если вход содержит текст (а не только бинарные ссылки).
func (in *ExecutionInput) IsTextual() bool {
	return in.SeedText() != ""
}

// Execution — один запуск recipe против конкретного входа.
type Execution struct {
	// ID — уникальный идентификатор execution.
	ID uuid.UUID `json:"id"`

	// RecipeID — ссылка на выполняемый recipe.
	RecipeID uuid.UUID `json:"recipe_id"`

	// Status — текущий статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Input — входные данные запуска.
	Input ExecutionInput `json:"input"`

	// CurrentStep — индекс текущего шага.
	CurrentStep int `json:"current_step"`

	// Progress — прогресс в процентах (0–100).
	Progress int `json:"progress"`

	// Cost — накопленная стоимость вызовов провайдеров (USD).
	// Сохраняется и при отказе, и при отмене — никогда не теряется.
	Cost float64 `json:"cost"`

	// Confidence — confidence score, извлечённый из structured-выводов
	// шагов после завершения. Nil — ни один шаг его не вернул.
	Confidence *float64 `json:"confidence,omitempty"`

	// Warning — флаг предупреждения по итогам проверки фактов.
	Warning bool `json:"warning,omitempty"`

	// PreviewKey — ключ публичного превью в object storage.
	PreviewKey string `json:"preview_key,omitempty"`

	// Error — текст ошибки, если execution завершился с ERROR.
	Error string `json:"error,omitempty"`

	// CancelRequested — внешний запрос отмены. Отмена кооперативная:
	// проверяется только на границе шагов, никогда посреди вызова.
	CancelRequested bool `json:"cancel_requested,omitempty"`

	// StartedAt — время перехода в RUNNING.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения (в любом финальном статусе).
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания execution.
	CreatedAt time.Time `json:"created_at"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если execution ещё не завершён.
func (e *Execution) Duration() time.Duration {
	if e.StartedAt == nil || e.FinishedAt == nil {
		return 0
	}
	return e.FinishedAt.Sub(*e.StartedAt)
}

// IsFinished возвращает true, если execution завершён (в любом статусе).
func (e *Execution) IsFinished() bool {
	return e.Status.IsTerminal()
}

// MarkRunning переводит execution в статус RUNNING.
func (e *Execution) MarkRunning() {
	now := time.Now()
	e.Status = ExecutionStatusRunning
	e.StartedAt = &now
}

// MarkDone переводит execution в статус DONE с прогрессом 100.
func (e *Execution) MarkDone() {
	now := time.Now()
	e.Status = ExecutionStatusDone
	e.Progress = 100
	e.FinishedAt = &now
}

// MarkError переводит execution в статус ERROR с текстом ошибки.
func (e *Execution) MarkError(errMsg string) {
	now := time.Now()
	e.Status = ExecutionStatusError
	e.FinishedAt = &now
	e.Error = errMsg
}

// MarkCancelled переводит execution в статус CANCELLED.
func (e *Execution) MarkCancelled() {
	now := time.Now()
	e.Status = ExecutionStatusCancelled
	e.FinishedAt = &now
}
