package provider

import (
	"context"
	"regexp"
	"strings"
)

// HTTPURLFetcher — получение текстового содержимого веб-страницы
// для подстановки в промпт.
type HTTPURLFetcher struct {
	// MaxBytes — ограничение размера подставляемого текста. 0 — 100 KiB.
	MaxBytes int
}

var (
	scriptRe = regexp.MustCompile(`(?is)<(script|style)[^>]*>.*?</(script|style)>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
)

// Fetch скачивает страницу и возвращает её текст без разметки.
// Извлечение грубое, по шаблонам; для промпта этого достаточно.
func (f *HTTPURLFetcher) Fetch(ctx context.Context, url string) (string, error) {
	body, err := getBytes(ctx, url)
	if err != nil {
		return "", err
	}

	text := scriptRe.ReplaceAllString(string(body), " ")
	text = tagRe.ReplaceAllString(text, " ")
	text = spaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	max := f.MaxBytes
	if max <= 0 {
		max = 100 * 1024
	}
	if len(text) > max {
		text = text[:max]
	}
	return text, nil
}
