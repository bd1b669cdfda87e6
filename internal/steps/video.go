package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// defaultVideoDuration — длительность ролика, если не задана в конфиге.
const defaultVideoDuration = 5

// VideoExecutor — шаг генерации видео. Протокол тот же, что у image
// (submit → poll → fetch-result), но с бо́льшим дедлайном опроса и
// стоимостью за секунду ролика.
type VideoExecutor struct {
	poller *Poller
	store  storage.ObjectStore

	// Timeout — дедлайн опроса. Ноль — VideoPollTimeout.
	Timeout time.Duration
}

// NewVideoExecutor создаёт исполнителя шага video.
func NewVideoExecutor(backend provider.GenerationBackend, store storage.ObjectStore) *VideoExecutor {
	return &VideoExecutor{poller: NewPoller(backend), store: store}
}

// Type возвращает тип шага.
func (e *VideoExecutor) Type() domain.StepType {
	return domain.StepVideo
}

// Execute выполняет генерацию видео.
func (e *VideoExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Video

	prompt := generationPrompt(req)
	if prompt == "" {
		return nil, fmt.Errorf("video generation %w", ErrNoPrompt)
	}

	duration := cfg.DurationSeconds
	if duration <= 0 {
		duration = defaultVideoDuration
	}

	start := time.Now()
	job, err := e.poller.backend.Submit(ctx, provider.SubmitRequest{
		Kind:            "video",
		Prompt:          prompt,
		DurationSeconds: duration,
		Resolution:      cfg.Resolution,
		AspectRatio:     cfg.AspectRatio,
	})
	if err != nil {
		return nil, fmt.Errorf("submit video generation: %w", err)
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = VideoPollTimeout
	}
	result, err := e.poller.Await(ctx, job, "video", timeout)
	if err != nil {
		return nil, err
	}

	artifact, err := e.poller.backend.Download(ctx, result.ArtifactURL)
	if err != nil {
		return nil, fmt.Errorf("download video: %w", err)
	}

	key := fmt.Sprintf("videos/%s/%d.mp4", req.Execution.ID, req.Step.Index)
	if err := e.store.Put(ctx, key, artifact, "video/mp4"); err != nil {
		return nil, fmt.Errorf("store video: %w", err)
	}

	url, _ := e.store.SignedURL(ctx, key, signedURLTTL)

	output := map[string]any{
		"file_id": key,
		"url":     url,
	}
	copyMetaKeys(output, result.Meta, "width", "height", "fps", "duration", "frame_count")

	// Фактическая длительность из метаданных точнее запрошенной.
	billed := float64(duration)
	if d, ok := result.Meta["duration"].(float64); ok && d > 0 {
		billed = d
	}

	cost := NewCostEntry(req, "videogen", "", billed, "seconds",
		billed*costPerVideoSecond, time.Since(start).Milliseconds())

	return &Result{
		Text:        marshalOutput(output),
		JSON:        output,
		ProviderRef: job.ID,
		Cost:        cost,
	}, nil
}
