package steps

import (
	"context"
	"strings"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// FormatExecutor — шаг output-format: рендерит накопленный вывод
// в запрошенные публикуемые представления. Чистое преобразование,
// провайдеров не вызывает, стоимости не создаёт.
type FormatExecutor struct{}

// NewFormatExecutor создаёт исполнителя шага output-format.
func NewFormatExecutor() *FormatExecutor {
	return &FormatExecutor{}
}

// Type возвращает тип шага.
func (e *FormatExecutor) Type() domain.StepType {
	return domain.StepOutputFormat
}

// Execute строит запрошенные представления.
//
// Представления:
//   - "markdown" — накопленный вывод как есть
//   - "html"     — рендер Markdown-подмножества
//   - "json"     — конверт {"content": ...}
//   - "article"  — публикуемый материал: заголовок, лид, тело,
//     плюс SEO, confidence и изображение из structured-выводов
//     ранних шагов (поиск по форме, не по индексу)
func (e *FormatExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Format
	body := req.Context.PreviousOutput

	formats := cfg.Formats
	if len(formats) == 0 {
		formats = []string{"markdown"}
	}

	outputs := make(map[string]any, len(formats))
	for _, f := range formats {
		switch f {
		case "markdown":
			outputs["markdown"] = body
		case "html":
			outputs["html"] = renderHTML(body)
		case "json":
			outputs["json"] = map[string]any{"content": body}
		case "article":
			outputs["article"] = e.buildArticle(req, body)
		}
	}

	return &Result{Text: body, JSON: outputs}, nil
}

// buildArticle собирает публикуемый материал.
//
// Дополнительные блоки (SEO, проверка фактов, изображение) ищутся
// среди structured-выводов предыдущих шагов по характерным полям:
// recipe сам решает, какие шаги их производят, фиксированных индексов нет.
func (e *FormatExecutor) buildArticle(req *Request, body string) map[string]any {
	title, lead, rest := splitArticle(body)

	article := map[string]any{
		"title":         title,
		"lead":          lead,
		"body_markdown": rest,
		"body_html":     renderHTML(rest),
	}

	if seo := req.Context.FindStepJSON(hasAnyKey("seo_title", "meta_description", "keywords")); seo != nil {
		article["seo"] = seo
	}

	if fact := req.Context.FindStepJSON(hasAnyKey("confidence_score", "verdict")); fact != nil {
		for _, k := range []string{"confidence_score", "verdict", "sources"} {
			if v, ok := fact[k]; ok {
				article[k] = v
			}
		}
	}

	if img := req.Context.FindStepJSON(hasAnyKey("file_id")); img != nil {
		article["image"] = img
	}

	return article
}

// splitArticle извлекает заголовок и лид из Markdown-текста.
//
// Заголовок — первая строка вида "# ...", лид — первый абзац после неё;
// оба вырезаются из тела. Текст без заголовка остаётся телом целиком.
func splitArticle(body string) (title, lead, rest string) {
	blocks := strings.Split(strings.TrimSpace(body), "\n\n")
	if len(blocks) == 0 || !strings.HasPrefix(blocks[0], "# ") {
		return "", "", body
	}

	headingBlock := blocks[0]
	lines := strings.SplitN(headingBlock, "\n", 2)
	title = strings.TrimSpace(strings.TrimPrefix(lines[0], "# "))

	remaining := blocks[1:]
	if len(lines) == 2 {
		// Лид прилип к заголовку без пустой строки.
		lead = strings.TrimSpace(lines[1])
	} else if len(remaining) > 0 && !strings.HasPrefix(remaining[0], "#") {
		lead = strings.TrimSpace(remaining[0])
		remaining = remaining[1:]
	}
	lead = strings.ReplaceAll(lead, "\n", " ")

	return title, lead, strings.Join(remaining, "\n\n")
}

// hasAnyKey возвращает предикат «в map есть хотя бы один из ключей».
func hasAnyKey(keys ...string) func(map[string]any) bool {
	return func(m map[string]any) bool {
		for _, k := range keys {
			if _, ok := m[k]; ok {
				return true
			}
		}
		return false
	}
}
