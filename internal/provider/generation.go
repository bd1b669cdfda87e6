package provider

import (
	"context"
	"fmt"
	"net/http"
)

// HTTPGenerationBackend — адаптер очереди генерации изображений/видео.
//
// Протокол:
//
//	POST {base}/v1/generations           → {"job_id", "status_url", "result_url"}
//	GET  {status_url}                    → {"status": "queued|running|completed|failed"}
//	GET  {result_url}                    → {"artifact_url", "meta": {...}}
type HTTPGenerationBackend struct {
	BaseURL string
	APIKey  string
}

type statusResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Submit ставит генерацию в очередь.
func (b *HTTPGenerationBackend) Submit(ctx context.Context, req SubmitRequest) (*GenerationJob, error) {
	var job GenerationJob
	if err := doJSON(ctx, http.MethodPost, b.BaseURL+"/v1/generations", b.APIKey, req, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("%w: no job id", ErrEmptyResult)
	}
	return &job, nil
}

// Status опрашивает статус задания.
func (b *HTTPGenerationBackend) Status(ctx context.Context, job *GenerationJob) (string, error) {
	var out statusResponse
	if err := doJSON(ctx, http.MethodGet, b.resolve(job.StatusURL), b.APIKey, nil, &out); err != nil {
		return "", err
	}
	if out.Status == JobStatusFailed && out.Error != "" {
		return out.Status, fmt.Errorf("%w: %s", ErrProviderRequest, out.Error)
	}
	return out.Status, nil
}

// Result возвращает дескриптор готового артефакта.
func (b *HTTPGenerationBackend) Result(ctx context.Context, job *GenerationJob) (*GenerationResult, error) {
	var out GenerationResult
	if err := doJSON(ctx, http.MethodGet, b.resolve(job.ResultURL), b.APIKey, nil, &out); err != nil {
		return nil, err
	}
	if out.ArtifactURL == "" {
		return nil, fmt.Errorf("%w: no artifact url", ErrEmptyResult)
	}
	return &out, nil
}

// Download скачивает бинарный артефакт.
func (b *HTTPGenerationBackend) Download(ctx context.Context, artifactURL string) ([]byte, error) {
	return getBytes(ctx, b.resolve(artifactURL))
}

// resolve поддерживает как абсолютные, так и относительные handle.
func (b *HTTPGenerationBackend) resolve(url string) string {
	if len(url) > 0 && url[0] == '/' {
		return b.BaseURL + url
	}
	return url
}
