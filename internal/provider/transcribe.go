package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPTranscriber — адаптер REST-сервиса распознавания речи.
//
// POST {base}/v1/transcriptions?language=xx
// Тело: аудио как octet-stream.
// Ответ: {"text": "...", "duration_seconds": 12.3}
type HTTPTranscriber struct {
	BaseURL string
	APIKey  string
}

type transcribeResponse struct {
	Text            string  `json:"text"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Transcribe распознаёт речь из аудио.
func (t *HTTPTranscriber) Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error) {
	url := t.BaseURL + "/v1/transcriptions"
	if language != "" {
		url += "?language=" + language
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProviderRequest, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if t.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+t.APIKey)
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrProviderRequest, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrProviderRequest,
			resp.StatusCode, truncate(string(body), 200))
	}

	var out transcribeResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderRequest, err)
	}

	return &Transcript{
		Text:            out.Text,
		DurationSeconds: out.DurationSeconds,
		LatencyMs:       time.Since(start).Milliseconds(),
	}, nil
}
