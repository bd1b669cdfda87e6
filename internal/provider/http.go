package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Ошибки адаптеров провайдеров.
var (
	// ErrProviderRequest — транспортная ошибка или non-2xx ответ.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrEmptyResult — провайдер вернул пустой результат.
	ErrEmptyResult = errors.New("provider returned empty result")
)

const defaultHTTPTimeout = 120 * time.Second

// httpClient — общий клиент адаптеров с вменяемым таймаутом.
var httpClient = &http.Client{Timeout: defaultHTTPTimeout}

// doJSON выполняет HTTP-запрос с JSON-телом и декодирует JSON-ответ в out.
func doJSON(ctx context.Context, method, url, apiKey string, in, out any) error {
	var bodyReader io.Reader
	if in != nil {
		body, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: marshal body: %v", ErrProviderRequest, err)
		}
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrProviderRequest, err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrProviderRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: HTTP %d: %s", ErrProviderRequest,
			resp.StatusCode, truncate(string(respBody), 200))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("%w: decode response: %v", ErrProviderRequest, err)
		}
	}

	return nil
}

// DownloadURL скачивает бинарное содержимое по URL.
func DownloadURL(ctx context.Context, url string) ([]byte, error) {
	return getBytes(ctx, url)
}

// getBytes скачивает бинарное содержимое по URL.
func getBytes(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrProviderRequest, err)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: HTTP %d", ErrProviderRequest, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
