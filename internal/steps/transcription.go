package steps

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// defaultPassthroughMinLen — порог длины текста, при превышении которого
// вход считается уже расшифрованным.
const defaultPassthroughMinLen = 10

// Маркеры skip-равнозначных быстрых путей.
const (
	SkippedInputTranscribed = "Skipped (input already transcribed)"
	SkippedInputTextual     = "Skipped (input already textual)"
)

// TranscriptionExecutor — шаг распознавания речи.
//
// Порядок выбора источника:
//  1. Input.TranscriptText — готовая расшифровка, используется дословно.
//  2. Текстовый вход длиннее порога — passthrough без вызова провайдера.
//  3. Аудио из object storage (AudioKey) или по URL (AudioURL) —
//     реальный вызов провайдера.
//
// Пустая (после trim) расшифровка — отказ шага, не пустой успех.
type TranscriptionExecutor struct {
	transcriber provider.Transcriber
	store       storage.ObjectStore
}

// NewTranscriptionExecutor создаёт исполнителя шага transcription.
func NewTranscriptionExecutor(transcriber provider.Transcriber, store storage.ObjectStore) *TranscriptionExecutor {
	return &TranscriptionExecutor{transcriber: transcriber, store: store}
}

// Type возвращает тип шага.
func (e *TranscriptionExecutor) Type() domain.StepType {
	return domain.StepTranscription
}

// Execute выполняет распознавание.
func (e *TranscriptionExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Transcription
	input := req.Execution.Input

	// Готовая расшифровка уже засеяна в PreviousOutput при создании
	// контекста: шаг skip-равнозначен, провайдер не вызывается.
	if input.TranscriptText != "" {
		return &Result{Skipped: true, SkipReason: SkippedInputTranscribed}, nil
	}

	// Текстовый вход достаточной длины: вход уже читаемый текст,
	// распознавать нечего.
	minLen := cfg.PassthroughMinLen
	if minLen <= 0 {
		minLen = defaultPassthroughMinLen
	}
	if text := strings.TrimSpace(req.Context.PreviousOutput); utf8.RuneCountInString(text) > minLen {
		return &Result{Skipped: true, SkipReason: SkippedInputTextual}, nil
	}

	audio, err := e.loadAudio(ctx, &input)
	if err != nil {
		return nil, err
	}

	transcript, err := e.transcriber.Transcribe(ctx, audio, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}

	text := strings.TrimSpace(transcript.Text)
	if text == "" {
		return nil, ErrEmptyTranscript
	}

	minutes := transcript.DurationSeconds / 60
	cost := NewCostEntry(req, "transcribe", "", minutes, "minutes",
		minutes*costPerAudioMinute, transcript.LatencyMs)

	return &Result{Text: text, Cost: cost}, nil
}

// loadAudio загружает аудио из storage или по внешнему URL.
func (e *TranscriptionExecutor) loadAudio(ctx context.Context, input *domain.ExecutionInput) ([]byte, error) {
	switch {
	case input.AudioKey != "":
		audio, err := e.store.Get(ctx, input.AudioKey)
		if err != nil {
			return nil, fmt.Errorf("load audio %s: %w", input.AudioKey, err)
		}
		return audio, nil
	case input.AudioURL != "":
		audio, err := provider.DownloadURL(ctx, input.AudioURL)
		if err != nil {
			return nil, fmt.Errorf("download audio: %w", err)
		}
		return audio, nil
	default:
		return nil, ErrNoAudio
	}
}
