// Package storage — object storage для бинарных артефактов:
// входное аудио, сгенерированные изображения и видео, HTML-превью.
package storage

import (
	"context"
	"errors"
	"time"
)

// Ошибки object storage.
var (
	// ErrNotFound — объект не найден.
	ErrNotFound = errors.New("object not found")
)

// ObjectStore — порт object storage.
type ObjectStore interface {
	// Put сохраняет объект.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Get возвращает содержимое объекта.
	Get(ctx context.Context, key string) ([]byte, error)

	// SignedURL возвращает подписанный URL с ограниченным временем жизни.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
