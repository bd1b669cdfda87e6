package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/engine"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// maxAttachedImage — максимальный размер прикладываемого изображения.
// Больше — мультимодальный вызов деградирует до текстового.
const maxAttachedImage = 10 << 20

// urlRe находит http(s)-ссылки в промпте для режима fetch_urls.
var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

// TextExecutor — шаг генерации текста.
//
// Промпт и системный промпт интерполируются контекстом выполнения,
// модель выбирается статически или стратегией "auto" по выводу раннего
// шага. JSON-образный вывод дополнительно парсится в structured-форму.
type TextExecutor struct {
	generator provider.TextGenerator
	fetcher   provider.URLFetcher
	store     storage.ObjectStore
}

// NewTextExecutor создаёт исполнителя шага text-generation.
func NewTextExecutor(generator provider.TextGenerator, fetcher provider.URLFetcher, store storage.ObjectStore) *TextExecutor {
	return &TextExecutor{generator: generator, fetcher: fetcher, store: store}
}

// Type возвращает тип шага.
func (e *TextExecutor) Type() domain.StepType {
	return domain.StepTextGeneration
}

// Execute выполняет генерацию.
func (e *TextExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Text

	model := engine.ResolveModel(cfg, req.Context)
	prompt := engine.Interpolate(cfg.Prompt, req.Context)
	system := engine.Interpolate(cfg.System, req.Context)

	if cfg.FetchURLs {
		prompt = e.injectURLContent(ctx, prompt)
	}

	var image []byte
	if cfg.AttachInputImage && req.Execution.Input.ImageKey != "" {
		image = e.loadImage(ctx, req.Execution.Input.ImageKey)
	}

	gen, err := e.generator.Generate(ctx, provider.GenerateRequest{
		Model:     model,
		System:    system,
		Prompt:    prompt,
		Image:     image,
		WebSearch: cfg.WebSearch,
	})
	if err != nil {
		return nil, fmt.Errorf("generate text: %w", err)
	}

	cost := NewCostEntry(req, "text", model,
		float64(gen.TokensIn+gen.TokensOut), "tokens",
		textCost(gen.TokensIn, gen.TokensOut), gen.LatencyMs)

	return &Result{
		Text:        gen.Text,
		JSON:        ParseStructured(gen.Text),
		ProviderRef: gen.RefID,
		Cost:        cost,
	}, nil
}

// injectURLContent дописывает к промпту текстовое содержимое найденных
// в нём ссылок. Отказ загрузки отдельной ссылки не валит шаг.
func (e *TextExecutor) injectURLContent(ctx context.Context, prompt string) string {
	if e.fetcher == nil {
		return prompt
	}

	urls := urlRe.FindAllString(prompt, -1)
	if len(urls) == 0 {
		return prompt
	}

	var b strings.Builder
	b.WriteString(prompt)
	for _, u := range urls {
		content, err := e.fetcher.Fetch(ctx, u)
		if err != nil || content == "" {
			continue
		}
		fmt.Fprintf(&b, "\n\n--- Content of %s ---\n%s", u, content)
	}
	return b.String()
}

// loadImage загружает изображение входа. Любая проблема деградирует
// вызов до текстового, не валит шаг.
func (e *TextExecutor) loadImage(ctx context.Context, key string) []byte {
	if e.store == nil {
		return nil
	}
	image, err := e.store.Get(ctx, key)
	if err != nil || len(image) > maxAttachedImage {
		return nil
	}
	return image
}

// ParseStructured парсит JSON-образный текст в map.
// Возвращает nil для обычного текста и для JSON не-объектной формы.
// Код-фенсы ```json вокруг объекта снимаются.
func ParseStructured(text string) map[string]any {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
		s = strings.TrimSpace(s)
	}

	if !strings.HasPrefix(s, "{") || !strings.HasSuffix(s, "}") {
		return nil
	}

	var parsed map[string]any
	if err := json.Unmarshal([]byte(s), &parsed); err != nil {
		return nil
	}
	return parsed
}
