package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// maxGenerationPrompt — лимит длины промпта генерации изображения/видео.
const maxGenerationPrompt = 4000

// signedURLTTL — время жизни подписанных ссылок на артефакты.
const signedURLTTL = 24 * time.Hour

// ImageExecutor — шаг генерации изображения через очередь провайдера:
// submit → poll → fetch-result → download → store.
type ImageExecutor struct {
	poller *Poller
	store  storage.ObjectStore

	// Timeout — дедлайн опроса. Ноль — ImagePollTimeout.
	Timeout time.Duration
}

// NewImageExecutor создаёт исполнителя шага image.
func NewImageExecutor(backend provider.GenerationBackend, store storage.ObjectStore) *ImageExecutor {
	return &ImageExecutor{poller: NewPoller(backend), store: store}
}

// Type возвращает тип шага.
func (e *ImageExecutor) Type() domain.StepType {
	return domain.StepImage
}

// Execute выполняет генерацию изображения.
func (e *ImageExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Image

	prompt := generationPrompt(req)
	if prompt == "" {
		return nil, fmt.Errorf("image generation %w", ErrNoPrompt)
	}

	size := cfg.Size
	if size == "" {
		size = "1024x1024"
	}
	format := cfg.Format
	if format == "" {
		format = "png"
	}

	start := time.Now()
	job, err := e.poller.backend.Submit(ctx, provider.SubmitRequest{
		Kind:   "image",
		Prompt: prompt,
		Size:   size,
		Format: format,
	})
	if err != nil {
		return nil, fmt.Errorf("submit image generation: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = ImagePollTimeout
	}
	result, err := e.poller.Await(ctx, job, "image", timeout)
	if err != nil {
		return nil, err
	}

	artifact, err := e.poller.backend.Download(ctx, result.ArtifactURL)
	if err != nil {
		return nil, fmt.Errorf("download image: %w", err)
	}

	key := fmt.Sprintf("images/%s/%d.%s", req.Execution.ID, req.Step.Index, format)
	if err := e.store.Put(ctx, key, artifact, "image/"+format); err != nil {
		return nil, fmt.Errorf("store image: %w", err)
	}

	// Подписанная ссылка — best effort: артефакт уже сохранён по ключу.
	url, _ := e.store.SignedURL(ctx, key, signedURLTTL)

	output := map[string]any{
		"file_id": key,
		"url":     url,
		"format":  format,
	}
	copyMetaKeys(output, result.Meta, "width", "height")

	cost := NewCostEntry(req, "imagegen", "", 1, "images",
		costPerImage, time.Since(start).Milliseconds())

	return &Result{
		// Текстовый вывод — сериализованный дескриптор: ссылки на шаг
		// из последующих шагов видят структуру, а не ключ хранилища.
		Text:        marshalOutput(output),
		JSON:        output,
		ProviderRef: job.ID,
		Cost:        cost,
	}, nil
}

// marshalOutput сериализует дескриптор артефакта в текстовый вывод шага.
func marshalOutput(output map[string]any) string {
	data, err := json.Marshal(output)
	if err != nil {
		return ""
	}
	return string(data)
}

// generationPrompt возвращает промпт для очереди генерации —
// накопленный вывод, обрезанный до лимита провайдера.
func generationPrompt(req *Request) string {
	prompt := strings.TrimSpace(req.Context.PreviousOutput)
	runes := []rune(prompt)
	if len(runes) > maxGenerationPrompt {
		return string(runes[:maxGenerationPrompt])
	}
	return prompt
}

// copyMetaKeys переносит известные ключи из метаданных провайдера в вывод.
func copyMetaKeys(dst, meta map[string]any, keys ...string) {
	for _, k := range keys {
		if v, ok := meta[k]; ok {
			dst[k] = v
		}
	}
}
