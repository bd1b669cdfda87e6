package domain

import (
	"time"

	"github.com/google/uuid"
)

// Recipe — определение конвейера генерации контента.
//
// Recipe — это "программа" для движка: упорядоченный неизменяемый список
// шагов (распознавание речи → генерация текста → генерация изображения/видео
// → форматирование → публикация). Каждый запуск (Execution) выполняет
// recipe против конкретного входа.
type Recipe struct {
	// ID — уникальный идентификатор recipe.
	ID uuid.UUID `json:"id"`

	// Name — имя recipe (например, "podcast-to-article").
	Name string `json:"name"`

	// Description — описание назначения recipe.
	Description string `json:"description,omitempty"`

	// IsActive — флаг активности. Неактивные recipes не запускаются.
	IsActive bool `json:"is_active"`

	// Steps — упорядоченный список шагов.
	// Инвариант: индексы непрерывны от 0 и строго возрастают.
	Steps []Step `json:"steps"`

	// CreatedAt — время создания recipe.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего изменения.
	UpdatedAt time.Time `json:"updated_at"`
}

// StepType — тип шага recipe.
type StepType string

const (
	// StepTranscription — распознавание речи из аудио.
	StepTranscription StepType = "transcription"

	// StepTextGeneration — генерация текста LLM-провайдером.
	StepTextGeneration StepType = "text-generation"

	// StepImage — генерация изображения через очередь (submit → poll → fetch).
	StepImage StepType = "image"

	// StepVideo — генерация видео через очередь (submit → poll → fetch).
	StepVideo StepType = "video"

	// StepOutputFormat — рендеринг накопленных выводов в публикуемые представления.
	StepOutputFormat StepType = "output-format"

	// StepPublish — публикация собранного материала во внешнюю систему.
	StepPublish StepType = "publish"
)

// Step — один шаг recipe.
type Step struct {
	// Index — позиция шага. Определяет порядок выполнения.
	// Условие и шаблоны шага могут ссылаться только на индексы строго меньше.
	Index int `json:"index"`

	// Name — человекочитаемое имя шага.
	Name string `json:"name"`

	// Type — тип шага.
	Type StepType `json:"type"`

	// Condition — условие выполнения. Nil — шаг выполняется всегда.
	Condition *Condition `json:"condition,omitempty"`

	// Config — конфигурация шага. Заполнен ровно один вариант,
	// соответствующий Type.
	Config StepConfig `json:"config"`
}

// Condition — предикат над structured-выводом более раннего шага.
//
// Поле читается из распарсенного JSON шага SourceStep, никогда из
// текстового вывода напрямую.
type Condition struct {
	// SourceStep — индекс шага, из JSON-вывода которого читается поле.
	SourceStep int `json:"source_step"`

	// Field — имя поля в JSON-выводе шага.
	Field string `json:"field"`

	// Operator — оператор сравнения: "eq", "neq", "in".
	// Неизвестный оператор трактуется как true (шаг выполняется).
	Operator string `json:"operator"`

	// Value — ожидаемое значение. Для "in" — список.
	Value any `json:"value"`
}

// StepConfig — конфигурация шага, tagged union.
//
// Ровно один вариант должен быть заполнен; вариант обязан соответствовать
// Step.Type (проверяется валидацией recipe при сохранении).
type StepConfig struct {
	Transcription *TranscriptionConfig `json:"transcription,omitempty"`
	Text          *TextConfig          `json:"text,omitempty"`
	Image         *ImageConfig         `json:"image,omitempty"`
	Video         *VideoConfig         `json:"video,omitempty"`
	Format        *FormatConfig        `json:"format,omitempty"`
	Publish       *PublishConfig       `json:"publish,omitempty"`
}

// TranscriptionConfig — конфигурация шага распознавания речи.
type TranscriptionConfig struct {
	// Language — язык аудио (подсказка провайдеру). Пусто — автоопределение.
	Language string `json:"language,omitempty"`

	// PassthroughMinLen — минимальная длина уже имеющегося текста,
	// при которой шаг считает вход уже расшифрованным и пропускает
	// реальное распознавание. 0 — значение по умолчанию (10).
	PassthroughMinLen int `json:"passthrough_min_len,omitempty"`
}

// TextConfig — конфигурация шага генерации текста.
type TextConfig struct {
	// Model — идентификатор модели по умолчанию.
	Model string `json:"model"`

	// ModelStrategy — стратегия выбора модели: "" (статическая) или "auto".
	// При "auto" модель выбирается по полю из JSON-вывода раннего шага.
	ModelStrategy string `json:"model_strategy,omitempty"`

	// ModelStrategyStep — индекс шага, из JSON которого читается поле.
	ModelStrategyStep int `json:"model_strategy_step,omitempty"`

	// ModelStrategyField — имя поля для выбора модели.
	ModelStrategyField string `json:"model_strategy_field,omitempty"`

	// ModelStrategyMap — конечное отображение значение поля → модель.
	// Отсутствующий ключ — fallback на Model.
	ModelStrategyMap map[string]string `json:"model_strategy_map,omitempty"`

	// System — системный промпт.
	System string `json:"system,omitempty"`

	// Prompt — шаблон промпта. Поддерживает {{original_input}}, {{input}},
	// {{step.N.text}}, {{step.N.json}}.
	Prompt string `json:"prompt"`

	// WebSearch — использовать вариант провайдера с веб-поиском.
	WebSearch bool `json:"web_search,omitempty"`

	// FetchURLs — подставлять в промпт содержимое найденных в нём URL.
	FetchURLs bool `json:"fetch_urls,omitempty"`

	// AttachInputImage — приложить изображение из входа execution
	// (мультимодальный вызов).
	AttachInputImage bool `json:"attach_input_image,omitempty"`
}

// ImageConfig — конфигурация шага генерации изображения.
type ImageConfig struct {
	// Size — размер изображения, например "1024x1024".
	Size string `json:"size,omitempty"`

	// Format — формат артефакта: "png", "jpeg", "webp".
	Format string `json:"format,omitempty"`
}

// VideoConfig — конфигурация шага генерации видео.
type VideoConfig struct {
	// DurationSeconds — длительность ролика в секундах.
	DurationSeconds int `json:"duration_seconds,omitempty"`

	// Resolution — разрешение, например "1080p".
	Resolution string `json:"resolution,omitempty"`

	// AspectRatio — соотношение сторон, например "16:9".
	AspectRatio string `json:"aspect_ratio,omitempty"`
}

// FormatConfig — конфигурация шага форматирования вывода.
type FormatConfig struct {
	// Formats — запрошенные представления: "markdown", "html", "json",
	// "article". Пусто — только "markdown".
	Formats []string `json:"formats,omitempty"`
}

// PublishConfig — конфигурация шага публикации.
type PublishConfig struct {
	// Target — имя интеграции публикации (для логов и cost ledger).
	Target string `json:"target,omitempty"`

	// SealedCredentials — запечатанные учётные данные интеграции
	// (base64 от secretbox). Пусто — интеграция не настроена,
	// шаг возвращает маркер пропуска.
	SealedCredentials string `json:"sealed_credentials,omitempty"`
}

// Variant возвращает имя заполненного варианта конфигурации.
// Пустая строка — ни один вариант не заполнен.
func (c *StepConfig) Variant() StepType {
	switch {
	case c.Transcription != nil:
		return StepTranscription
	case c.Text != nil:
		return StepTextGeneration
	case c.Image != nil:
		return StepImage
	case c.Video != nil:
		return StepVideo
	case c.Format != nil:
		return StepOutputFormat
	case c.Publish != nil:
		return StepPublish
	default:
		return ""
	}
}
