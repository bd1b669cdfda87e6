// Package provider определяет контракты внешних AI-провайдеров
// и их HTTP-адаптеры.
//
// Движок работает только с узкими портами (интерфейсами); адаптеры —
// тонкие JSON-over-HTTP клиенты. Retry, если нужен, живёт внутри
// адаптера, никогда в контроллере выполнения.
package provider

import "context"

// Transcript — результат распознавания речи.
type Transcript struct {
	// Text — текст расшифровки.
	Text string

	// DurationSeconds — длительность аудио.
	DurationSeconds float64

	// LatencyMs — длительность вызова провайдера.
	LatencyMs int64
}

// Transcriber — порт распознавания речи.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language string) (*Transcript, error)
}

// GenerateRequest — запрос генерации текста.
type GenerateRequest struct {
	// Model — идентификатор модели.
	Model string

	// System — системный промпт.
	System string

	// Prompt — пользовательский промпт.
	Prompt string

	// Image — приложенное изображение для мультимодального вызова. Может быть nil.
	Image []byte

	// WebSearch — использовать вариант с веб-поиском.
	// Провайдер сам делает fallback на обычный вызов при отказе поиска.
	WebSearch bool
}

// Generation — результат генерации текста.
type Generation struct {
	// Text — сгенерированный текст.
	Text string

	// TokensIn — количество входных токенов.
	TokensIn int

	// TokensOut — количество выходных токенов.
	TokensOut int

	// LatencyMs — длительность вызова.
	LatencyMs int64

	// RefID — идентификатор вызова у провайдера (для cost lookup).
	RefID string
}

// TextGenerator — порт генерации текста.
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (*Generation, error)
}

// Статусы задания очереди генерации.
const (
	JobStatusQueued    = "queued"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

// SubmitRequest — запрос постановки генерации в очередь.
type SubmitRequest struct {
	// Kind — вид артефакта: "image" или "video".
	Kind string `json:"kind"`

	// Prompt — промпт генерации.
	Prompt string `json:"prompt"`

	// Size — размер изображения (для image).
	Size string `json:"size,omitempty"`

	// Format — формат изображения (для image).
	Format string `json:"format,omitempty"`

	// DurationSeconds — длительность ролика (для video).
	DurationSeconds int `json:"duration_seconds,omitempty"`

	// Resolution — разрешение видео.
	Resolution string `json:"resolution,omitempty"`

	// AspectRatio — соотношение сторон.
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// GenerationJob — дескриптор задания в очереди генерации.
type GenerationJob struct {
	// ID — идентификатор задания у провайдера.
	ID string `json:"job_id"`

	// StatusURL — handle для опроса статуса.
	StatusURL string `json:"status_url"`

	// ResultURL — handle для получения результата.
	ResultURL string `json:"result_url"`
}

// GenerationResult — дескриптор готового артефакта.
type GenerationResult struct {
	// ArtifactURL — URL бинарного артефакта.
	ArtifactURL string `json:"artifact_url"`

	// Meta — метаданные артефакта (width, height, fps, duration, ...).
	Meta map[string]any `json:"meta,omitempty"`
}

// GenerationBackend — порт очереди генерации (image/video).
//
// Протокол: submit → poll → fetch-result; форма общая для изображений и видео.
type GenerationBackend interface {
	Submit(ctx context.Context, req SubmitRequest) (*GenerationJob, error)
	Status(ctx context.Context, job *GenerationJob) (string, error)
	Result(ctx context.Context, job *GenerationJob) (*GenerationResult, error)
	Download(ctx context.Context, artifactURL string) ([]byte, error)
}

// PublishRequest — запрос публикации собранного материала.
type PublishRequest struct {
	// Credentials — расшифрованные учётные данные интеграции (JSON).
	Credentials []byte

	// Title — заголовок материала.
	Title string

	// Lead — лид-абзац.
	Lead string

	// HTML — санитизированное тело материала.
	HTML string

	// ImageURL — URL ранее сгенерированного изображения. Может быть пустым.
	ImageURL string

	// Meta — SEO и прочие метаданные.
	Meta map[string]any
}

// PublishResult — результат публикации.
type PublishResult struct {
	// RemoteID — идентификатор материала во внешней системе.
	RemoteID string `json:"remote_id"`

	// RemoteURL — URL опубликованного материала.
	RemoteURL string `json:"remote_url"`

	// Status — статус публикации ("published", "draft", ...).
	Status string `json:"status"`
}

// Publisher — порт публикации.
type Publisher interface {
	Publish(ctx context.Context, req PublishRequest) (*PublishResult, error)
}

// URLFetcher — порт получения текстового содержимого веб-страницы.
type URLFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}
