// Package steps — исполнители шагов recipe.
//
// Каждый тип шага (transcription, text-generation, image, video,
// output-format, publish) реализует интерфейс Executor. Исполнители
// читают контекст выполнения и порты провайдеров; персистентностью
// и статусами занимается runner, не исполнители.
package steps

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/engine"
)

// Ошибки шагов.
var (
	// ErrExecutorNotFound — тип шага не найден в реестре.
	ErrExecutorNotFound = errors.New("step executor not found")

	// ErrEmptyTranscript — провайдер вернул пустую расшифровку.
	ErrEmptyTranscript = errors.New("transcription returned empty text")

	// ErrNoAudio — у входа execution нет аудио, а текста недостаточно.
	ErrNoAudio = errors.New("no audio in execution input")

	// ErrNoPrompt — генерации нечем промптить (пустой накопленный вывод).
	ErrNoPrompt = errors.New("generation step requires a prompt")

	// ErrPollTimeout — задание генерации не завершилось за отведённое время.
	ErrPollTimeout = errors.New("generation polling timed out")

	// ErrGenerationFailed — провайдер сообщил об отказе задания.
	ErrGenerationFailed = errors.New("generation job failed")
)

// Request — входные данные выполнения шага.
type Request struct {
	// Execution — выполняемый execution (только чтение).
	Execution *domain.Execution

	// Step — определение шага из recipe.
	Step *domain.Step

	// Context — накопленные выводы предыдущих шагов.
	Context *engine.Context
}

// Result — результат выполнения шага.
type Result struct {
	// Skipped — шаг сообщил skip-равнозначный исход (вход уже
	// расшифрован, публикация не настроена). Runner помечает
	// StepResult как SKIPPED и не изменяет контекст выполнения.
	Skipped bool

	// SkipReason — человекочитаемый маркер причины пропуска.
	SkipReason string

	// Text — текстовый вывод шага. Становится PreviousOutput.
	Text string

	// JSON — распарсенный structured-вывод, если вывод JSON-образный.
	JSON map[string]any

	// ProviderRef — ссылка на вызов провайдера (для cost lookup).
	ProviderRef string

	// Cost — запись cost ledger. Nil, если шаг не делал платных вызовов.
	Cost *domain.CostEntry
}

// Executor — интерфейс исполнителя шага.
type Executor interface {
	// Type возвращает тип шага, который обслуживает исполнитель.
	Type() domain.StepType

	// Execute выполняет шаг. Ошибка означает отказ шага: runner
	// останавливает execution (fail-fast), не повторяя шаг.
	Execute(ctx context.Context, req *Request) (*Result, error)
}

// NewCostEntry собирает запись cost ledger для вызова провайдера.
func NewCostEntry(req *Request, providerName, model string, units float64, unitKind string, cost float64, latencyMs int64) *domain.CostEntry {
	return &domain.CostEntry{
		ID:          uuid.New(),
		ExecutionID: req.Execution.ID,
		StepIndex:   req.Step.Index,
		Provider:    providerName,
		Model:       model,
		Units:       units,
		UnitKind:    unitKind,
		Cost:        cost,
		LatencyMs:   latencyMs,
		CreatedAt:   time.Now(),
	}
}
