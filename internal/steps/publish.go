package steps

import (
	"context"
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/secrets"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// Маркеры пропуска публикации. Ненастроенная интеграция и отсутствие
// материала — нормальные исходы шага, не отказы.
const (
	PublishSkippedNoIntegration = "Publish skipped (no integration configured)"
	PublishSkippedNoArticle     = "Publish skipped (no article payload)"
)

// PublishExecutor — шаг публикации собранного материала во внешнюю систему.
//
// Материал ("article") ищется среди structured-выводов предыдущих шагов;
// учётные данные интеграции хранятся запечатанными и расшифровываются
// только здесь. HTML перед отправкой санитизируется.
type PublishExecutor struct {
	publisher provider.Publisher
	box       *secrets.Box
	store     storage.ObjectStore
	policy    *bluemonday.Policy
}

// NewPublishExecutor создаёт исполнителя шага publish.
func NewPublishExecutor(publisher provider.Publisher, box *secrets.Box, store storage.ObjectStore) *PublishExecutor {
	return &PublishExecutor{
		publisher: publisher,
		box:       box,
		store:     store,
		policy:    bluemonday.UGCPolicy(),
	}
}

// Type возвращает тип шага.
func (e *PublishExecutor) Type() domain.StepType {
	return domain.StepPublish
}

// Execute публикует материал.
func (e *PublishExecutor) Execute(ctx context.Context, req *Request) (*Result, error) {
	cfg := req.Step.Config.Publish

	if cfg.SealedCredentials == "" {
		return &Result{Skipped: true, SkipReason: PublishSkippedNoIntegration}, nil
	}

	article := e.findArticle(req)
	if article == nil {
		return &Result{Skipped: true, SkipReason: PublishSkippedNoArticle}, nil
	}

	if e.box == nil {
		return nil, fmt.Errorf("no secret key configured, cannot unseal credentials for %s", cfg.Target)
	}

	creds, err := e.box.Open(cfg.SealedCredentials)
	if err != nil {
		return nil, fmt.Errorf("open credentials for %s: %w", cfg.Target, err)
	}

	html, _ := article["body_html"].(string)
	title, _ := article["title"].(string)
	lead, _ := article["lead"].(string)
	meta, _ := article["seo"].(map[string]any)

	res, err := e.publisher.Publish(ctx, provider.PublishRequest{
		Credentials: creds,
		Title:       title,
		Lead:        lead,
		HTML:        e.policy.Sanitize(html),
		ImageURL:    e.imageURL(ctx, article),
		Meta:        meta,
	})
	if err != nil {
		return nil, fmt.Errorf("publish to %s: %w", cfg.Target, err)
	}

	return &Result{
		Text: res.RemoteURL,
		JSON: map[string]any{
			"remote_id":  res.RemoteID,
			"remote_url": res.RemoteURL,
			"status":     res.Status,
		},
		ProviderRef: res.RemoteID,
	}, nil
}

// findArticle возвращает материал из вывода шага output-format.
func (e *PublishExecutor) findArticle(req *Request) map[string]any {
	out := req.Context.FindStepJSON(hasAnyKey("article"))
	if out == nil {
		return nil
	}
	article, _ := out["article"].(map[string]any)
	return article
}

// imageURL возвращает ссылку на изображение материала: готовую из
// вывода шага image либо свежеподписанную по ключу. Отсутствие
// изображения публикацию не останавливает.
func (e *PublishExecutor) imageURL(ctx context.Context, article map[string]any) string {
	img, _ := article["image"].(map[string]any)
	if img == nil {
		return ""
	}
	if url, _ := img["url"].(string); url != "" {
		return url
	}
	if key, _ := img["file_id"].(string); key != "" && e.store != nil {
		url, _ := e.store.SignedURL(ctx, key, signedURLTTL)
		return url
	}
	return ""
}
