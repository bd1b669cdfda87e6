package steps

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
	"github.com/dan-auerbach/morana-sub000/internal/engine"
	"github.com/dan-auerbach/morana-sub000/internal/provider"
	"github.com/dan-auerbach/morana-sub000/internal/secrets"
	"github.com/dan-auerbach/morana-sub000/internal/storage"
)

// --- Fakes ---

type fakeStore struct {
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(_ context.Context, key string, data []byte, _ string) error {
	s.objects[key] = data
	return nil
}

func (s *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (s *fakeStore) SignedURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://signed.example/" + key, nil
}

type fakeTranscriber struct {
	text string
	err  error
}

func (t *fakeTranscriber) Transcribe(_ context.Context, _ []byte, _ string) (*provider.Transcript, error) {
	if t.err != nil {
		return nil, t.err
	}
	return &provider.Transcript{Text: t.text, DurationSeconds: 120, LatencyMs: 5}, nil
}

type fakeGenerator struct {
	lastReq provider.GenerateRequest
	text    string
}

func (g *fakeGenerator) Generate(_ context.Context, req provider.GenerateRequest) (*provider.Generation, error) {
	g.lastReq = req
	return &provider.Generation{
		Text: g.text, TokensIn: 100, TokensOut: 50, LatencyMs: 7, RefID: "gen-1",
	}, nil
}

type fakeBackend struct {
	statuses []string
	polls    int
	meta     map[string]any
}

func (b *fakeBackend) Submit(_ context.Context, _ provider.SubmitRequest) (*provider.GenerationJob, error) {
	return &provider.GenerationJob{ID: "job-1", StatusURL: "/s", ResultURL: "/r"}, nil
}

func (b *fakeBackend) Status(_ context.Context, _ *provider.GenerationJob) (string, error) {
	if b.polls >= len(b.statuses) {
		return provider.JobStatusCompleted, nil
	}
	status := b.statuses[b.polls]
	b.polls++
	return status, nil
}

func (b *fakeBackend) Result(_ context.Context, _ *provider.GenerationJob) (*provider.GenerationResult, error) {
	return &provider.GenerationResult{ArtifactURL: "https://cdn.example/a", Meta: b.meta}, nil
}

func (b *fakeBackend) Download(_ context.Context, _ string) ([]byte, error) {
	return []byte("artifact-bytes"), nil
}

type fakePublisher struct {
	lastReq provider.PublishRequest
}

func (p *fakePublisher) Publish(_ context.Context, req provider.PublishRequest) (*provider.PublishResult, error) {
	p.lastReq = req
	return &provider.PublishResult{RemoteID: "42", RemoteURL: "https://cms.example/42", Status: "published"}, nil
}

// newRequest собирает Request для теста.
func newRequest(input domain.ExecutionInput, step domain.Step) *Request {
	return &Request{
		Execution: &domain.Execution{ID: uuid.New(), Input: input},
		Step:      &step,
		Context:   engine.NewContext(input.SeedText()),
	}
}

// noSleep отключает реальное ожидание в поллере.
func noSleep(_ context.Context, _ time.Duration) error { return nil }

// --- Transcription ---

func TestTranscription_TranscriptFastPath(t *testing.T) {
	e := NewTranscriptionExecutor(&fakeTranscriber{text: "should not be called"}, newFakeStore())
	req := newRequest(
		domain.ExecutionInput{TranscriptText: "готовая расшифровка"},
		domain.Step{Type: domain.StepTranscription, Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Расшифровка уже в PreviousOutput, шаг skip-равнозначен.
	if !res.Skipped || res.SkipReason != SkippedInputTranscribed {
		t.Errorf("expected transcript fast path skip, got %+v", res)
	}
	if res.Cost != nil {
		t.Error("fast path must not record cost")
	}
}

func TestTranscription_TextPassthrough(t *testing.T) {
	e := NewTranscriptionExecutor(&fakeTranscriber{text: "should not be called"}, newFakeStore())
	req := newRequest(
		domain.ExecutionInput{Text: "this text is clearly longer than ten characters"},
		domain.Step{Type: domain.StepTranscription, Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped || res.SkipReason != SkippedInputTextual {
		t.Errorf("expected textual passthrough skip, got %+v", res)
	}
}

func TestTranscription_AudioFromStorage(t *testing.T) {
	store := newFakeStore()
	store.objects["audio/ep1.mp3"] = []byte("mp3-bytes")

	e := NewTranscriptionExecutor(&fakeTranscriber{text: "распознанный текст"}, store)
	req := newRequest(
		domain.ExecutionInput{AudioKey: "audio/ep1.mp3"},
		domain.Step{Type: domain.StepTranscription, Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{Language: "ru"}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Text != "распознанный текст" {
		t.Errorf("unexpected text: %q", res.Text)
	}
	if res.Cost == nil {
		t.Fatal("expected cost entry")
	}
	if res.Cost.UnitKind != "minutes" || res.Cost.Units != 2 {
		t.Errorf("unexpected cost units: %v %s", res.Cost.Units, res.Cost.UnitKind)
	}
}

func TestTranscription_EmptyTranscriptFails(t *testing.T) {
	store := newFakeStore()
	store.objects["audio/ep1.mp3"] = []byte("mp3-bytes")

	e := NewTranscriptionExecutor(&fakeTranscriber{text: "   "}, store)
	req := newRequest(
		domain.ExecutionInput{AudioKey: "audio/ep1.mp3"},
		domain.Step{Type: domain.StepTranscription, Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}}},
	)

	if _, err := e.Execute(context.Background(), req); !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestTranscription_NoAudioFails(t *testing.T) {
	e := NewTranscriptionExecutor(&fakeTranscriber{}, newFakeStore())
	req := newRequest(
		domain.ExecutionInput{Text: "short"},
		domain.Step{Type: domain.StepTranscription, Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}}},
	)

	if _, err := e.Execute(context.Background(), req); !errors.Is(err, ErrNoAudio) {
		t.Errorf("expected ErrNoAudio, got %v", err)
	}
}

// --- Text generation ---

func TestText_InterpolatesAndResolvesModel(t *testing.T) {
	gen := &fakeGenerator{text: "сгенерированный текст"}
	e := NewTextExecutor(gen, nil, nil)

	req := newRequest(
		domain.ExecutionInput{Text: "тема выпуска"},
		domain.Step{
			Index: 2,
			Type:  domain.StepTextGeneration,
			Config: domain.StepConfig{Text: &domain.TextConfig{
				Model:              "base-model",
				ModelStrategy:      "auto",
				ModelStrategyStep:  0,
				ModelStrategyField: "category",
				ModelStrategyMap:   map[string]string{"tech": "большая-модель"},
				Prompt:             "Напиши статью по теме: {{original_input}}. Черновик: {{step.1.text}}",
			}},
		},
	)
	req.Context.AddStepOutput(0, `{"category":"tech"}`, map[string]any{"category": "tech"})
	req.Context.AddStepOutput(1, "черновик статьи", nil)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gen.lastReq.Model != "большая-модель" {
		t.Errorf("model not resolved: %q", gen.lastReq.Model)
	}
	want := "Напиши статью по теме: тема выпуска. Черновик: черновик статьи"
	if gen.lastReq.Prompt != want {
		t.Errorf("prompt not interpolated: %q", gen.lastReq.Prompt)
	}
	if res.Cost == nil || res.Cost.Units != 150 {
		t.Errorf("expected 150 token cost units, got %+v", res.Cost)
	}
	if res.ProviderRef != "gen-1" {
		t.Errorf("provider ref not propagated: %q", res.ProviderRef)
	}
}

func TestText_ParsesStructuredOutput(t *testing.T) {
	gen := &fakeGenerator{text: "```json\n{\"verdict\":\"pass\",\"confidence_score\":0.93}\n```"}
	e := NewTextExecutor(gen, nil, nil)

	req := newRequest(
		domain.ExecutionInput{Text: "вход"},
		domain.Step{Type: domain.StepTextGeneration, Config: domain.StepConfig{Text: &domain.TextConfig{Model: "m", Prompt: "{{input}}"}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JSON == nil {
		t.Fatal("expected parsed JSON output")
	}
	if res.JSON["verdict"] != "pass" {
		t.Errorf("unexpected verdict: %v", res.JSON["verdict"])
	}
}

func TestParseStructured(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"plain text", "просто текст", false},
		{"json object", `{"a":1}`, true},
		{"fenced json", "```json\n{\"a\":1}\n```", true},
		{"json array", `[1,2]`, false},
		{"broken json", `{"a":`, false},
		{"padded object", "  {\"a\":1}\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseStructured(tt.in)
			if (got != nil) != tt.want {
				t.Errorf("ParseStructured(%q) = %v, want parsed=%v", tt.in, got, tt.want)
			}
		})
	}
}

// --- Poller ---

func TestPoller_AwaitCompletes(t *testing.T) {
	backend := &fakeBackend{statuses: []string{
		provider.JobStatusQueued,
		provider.JobStatusRunning,
		provider.JobStatusRunning,
	}}
	p := NewPoller(backend)
	p.sleep = noSleep

	result, err := p.Await(context.Background(), &provider.GenerationJob{ID: "job-1"}, "image", time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ArtifactURL == "" {
		t.Error("expected artifact URL")
	}
	if backend.polls != 3 {
		t.Errorf("expected 3 non-terminal polls, got %d", backend.polls)
	}
}

func TestPoller_AwaitJobFailed(t *testing.T) {
	p := NewPoller(&fakeBackend{statuses: []string{provider.JobStatusFailed, provider.JobStatusFailed}})
	p.sleep = noSleep

	_, err := p.Await(context.Background(), &provider.GenerationJob{ID: "job-1"}, "image", time.Minute)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Errorf("expected ErrGenerationFailed, got %v", err)
	}
}

func TestPoller_IntervalsGrowToCap(t *testing.T) {
	// Задание долго queued: интервалы должны детерминированно расти
	// от начального до потолка, без джиттера и без провалов.
	backend := &fakeBackend{statuses: strings.Split(strings.Repeat("queued,", 12), ",")}
	p := NewPoller(backend)

	var intervals []time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		intervals = append(intervals, d)
		return nil
	}

	if _, err := p.Await(context.Background(), &provider.GenerationJob{ID: "job-1"}, "image", time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(intervals) == 0 {
		t.Fatal("expected captured poll intervals")
	}
	if intervals[0] != 500*time.Millisecond {
		t.Errorf("first interval must be 500ms, got %s", intervals[0])
	}
	for i := 1; i < len(intervals); i++ {
		if intervals[i] < intervals[i-1] {
			t.Errorf("interval %d decreased: %s after %s", i, intervals[i], intervals[i-1])
		}
	}
	for i, d := range intervals {
		if d > 5*time.Second {
			t.Errorf("interval %d exceeds cap: %s", i, d)
		}
	}
	if last := intervals[len(intervals)-1]; last != 5*time.Second {
		t.Errorf("intervals must reach the 5s cap, last was %s", last)
	}
}

func TestPoller_AwaitTimeout(t *testing.T) {
	// Задание вечно queued, дедлайн истекает на первом же интервале.
	backend := &fakeBackend{statuses: strings.Split(strings.Repeat("queued,", 100), ",")}
	p := NewPoller(backend)
	p.sleep = noSleep

	_, err := p.Await(context.Background(), &provider.GenerationJob{ID: "job-1"}, "video", time.Nanosecond)
	if !errors.Is(err, ErrPollTimeout) {
		t.Errorf("expected ErrPollTimeout, got %v", err)
	}
}

// --- Image / Video ---

func TestImage_RequiresPrompt(t *testing.T) {
	e := NewImageExecutor(&fakeBackend{}, newFakeStore())
	req := newRequest(
		domain.ExecutionInput{},
		domain.Step{Type: domain.StepImage, Config: domain.StepConfig{Image: &domain.ImageConfig{}}},
	)

	if _, err := e.Execute(context.Background(), req); !errors.Is(err, ErrNoPrompt) {
		t.Errorf("expected ErrNoPrompt, got %v", err)
	}
}

func TestImage_SubmitPollStore(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{
		statuses: []string{provider.JobStatusRunning},
		meta:     map[string]any{"width": float64(1024), "height": float64(1024)},
	}
	e := NewImageExecutor(backend, store)
	e.poller.sleep = noSleep

	req := newRequest(
		domain.ExecutionInput{Text: "закат над морем"},
		domain.Step{Index: 1, Type: domain.StepImage, Config: domain.StepConfig{Image: &domain.ImageConfig{Format: "png"}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Текстовый вывод — дескриптор артефакта, а не ключ хранилища:
	// последующие шаги видят его через ссылки на текст шага.
	var desc map[string]any
	if err := json.Unmarshal([]byte(res.Text), &desc); err != nil {
		t.Fatalf("text output must be a JSON descriptor, got %q: %v", res.Text, err)
	}
	key, _ := desc["file_id"].(string)
	if key == "" || key != res.JSON["file_id"] {
		t.Errorf("descriptor file_id mismatch: %q vs %v", key, res.JSON["file_id"])
	}
	if _, ok := store.objects[key]; !ok {
		t.Errorf("artifact not stored under %q", key)
	}
	if desc["url"] != res.JSON["url"] || desc["format"] != "png" {
		t.Errorf("descriptor incomplete: %v", desc)
	}
	if res.JSON["width"] != float64(1024) {
		t.Errorf("meta not propagated: %v", res.JSON)
	}
	if res.Cost == nil || res.Cost.UnitKind != "images" || res.Cost.Units != 1 {
		t.Errorf("unexpected cost: %+v", res.Cost)
	}
}

func TestVideo_CostPerSecondFromMeta(t *testing.T) {
	store := newFakeStore()
	backend := &fakeBackend{meta: map[string]any{"duration": float64(8), "fps": float64(24)}}
	e := NewVideoExecutor(backend, store)
	e.poller.sleep = noSleep

	req := newRequest(
		domain.ExecutionInput{Text: "таймлапс стройки"},
		domain.Step{Index: 0, Type: domain.StepVideo, Config: domain.StepConfig{Video: &domain.VideoConfig{DurationSeconds: 5}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Фактическая длительность из метаданных важнее запрошенной.
	if res.Cost == nil || res.Cost.Units != 8 || res.Cost.UnitKind != "seconds" {
		t.Errorf("unexpected cost: %+v", res.Cost)
	}
	if res.JSON["fps"] != float64(24) {
		t.Errorf("meta not propagated: %v", res.JSON)
	}

	var desc map[string]any
	if err := json.Unmarshal([]byte(res.Text), &desc); err != nil {
		t.Fatalf("text output must be a JSON descriptor, got %q: %v", res.Text, err)
	}
	if desc["file_id"] != res.JSON["file_id"] || desc["duration"] != float64(8) {
		t.Errorf("descriptor incomplete: %v", desc)
	}
}

// --- Output format ---

func TestFormat_DefaultMarkdown(t *testing.T) {
	e := NewFormatExecutor()
	req := newRequest(
		domain.ExecutionInput{Text: "# Заголовок\n\nТекст."},
		domain.Step{Type: domain.StepOutputFormat, Config: domain.StepConfig{Format: &domain.FormatConfig{}}},
	)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.JSON["markdown"] != "# Заголовок\n\nТекст." {
		t.Errorf("unexpected markdown: %v", res.JSON["markdown"])
	}
	if _, ok := res.JSON["html"]; ok {
		t.Error("html must not be rendered unless requested")
	}
}

func TestFormat_ArticleAssembly(t *testing.T) {
	e := NewFormatExecutor()
	req := newRequest(
		domain.ExecutionInput{Text: "тема"},
		domain.Step{
			Index: 3,
			Type:  domain.StepOutputFormat,
			Config: domain.StepConfig{Format: &domain.FormatConfig{Formats: []string{"article", "html"}}},
		},
	)
	req.Context.AddStepOutput(0, `{"seo_title":"SEO","keywords":["a"]}`,
		map[string]any{"seo_title": "SEO", "keywords": []any{"a"}})
	req.Context.AddStepOutput(1, `{"confidence_score":0.9,"verdict":"pass"}`,
		map[string]any{"confidence_score": 0.9, "verdict": "pass"})
	req.Context.AddStepOutput(2, "# Громкий заголовок\n\nЛид-абзац статьи.\n\nОсновной текст.", nil)

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	article, ok := res.JSON["article"].(map[string]any)
	if !ok {
		t.Fatalf("expected article payload, got %v", res.JSON)
	}
	if article["title"] != "Громкий заголовок" {
		t.Errorf("unexpected title: %v", article["title"])
	}
	if article["lead"] != "Лид-абзац статьи." {
		t.Errorf("unexpected lead: %v", article["lead"])
	}
	if article["body_markdown"] != "Основной текст." {
		t.Errorf("title/lead must be stripped from body: %v", article["body_markdown"])
	}
	if article["confidence_score"] != 0.9 || article["verdict"] != "pass" {
		t.Errorf("fact-check block not merged: %v", article)
	}
	seo, _ := article["seo"].(map[string]any)
	if seo == nil || seo["seo_title"] != "SEO" {
		t.Errorf("seo block not merged: %v", article["seo"])
	}
}

func TestSplitArticle_NoHeading(t *testing.T) {
	title, lead, rest := splitArticle("просто текст без заголовка")
	if title != "" || lead != "" {
		t.Errorf("expected empty title/lead, got %q/%q", title, lead)
	}
	if rest != "просто текст без заголовка" {
		t.Errorf("body must stay intact: %q", rest)
	}
}

func TestRenderHTML(t *testing.T) {
	md := "# Заголовок\n\nАбзац с **жирным** и [ссылкой](https://example.com).\n\n- один\n- два"
	html := renderHTML(md)

	for _, want := range []string{
		"<h1>Заголовок</h1>",
		"<strong>жирным</strong>",
		`<a href="https://example.com">ссылкой</a>`,
		"<li>один</li>",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered HTML missing %q:\n%s", want, html)
		}
	}
}

// --- Publish ---

func publishStep(sealed string) domain.Step {
	return domain.Step{
		Index: 4,
		Type:  domain.StepPublish,
		Config: domain.StepConfig{Publish: &domain.PublishConfig{
			Target:            "cms",
			SealedCredentials: sealed,
		}},
	}
}

func TestPublish_SkipsWithoutIntegration(t *testing.T) {
	e := NewPublishExecutor(&fakePublisher{}, nil, nil)
	req := newRequest(domain.ExecutionInput{Text: "тема"}, publishStep(""))

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped || res.SkipReason != PublishSkippedNoIntegration {
		t.Errorf("expected skip marker, got %+v", res)
	}
}

func TestPublish_SkipsWithoutArticle(t *testing.T) {
	box, _ := secrets.NewBox(strings.Repeat("ab", 32))
	sealed, _ := box.Seal([]byte(`{"api_url":"https://cms.example","token":"t"}`))

	e := NewPublishExecutor(&fakePublisher{}, box, nil)
	req := newRequest(domain.ExecutionInput{Text: "тема"}, publishStep(sealed))

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Skipped || res.SkipReason != PublishSkippedNoArticle {
		t.Errorf("expected skip marker, got %+v", res)
	}
}

func TestPublish_SanitizesAndPublishes(t *testing.T) {
	box, _ := secrets.NewBox(strings.Repeat("ab", 32))
	sealed, _ := box.Seal([]byte(`{"api_url":"https://cms.example","token":"t"}`))

	pub := &fakePublisher{}
	e := NewPublishExecutor(pub, box, newFakeStore())
	req := newRequest(domain.ExecutionInput{Text: "тема"}, publishStep(sealed))
	req.Context.AddStepOutput(0, "", map[string]any{
		"article": map[string]any{
			"title":     "Заголовок",
			"lead":      "Лид.",
			"body_html": `<p>ok</p><script>alert(1)</script>`,
			"image":     map[string]any{"file_id": "images/x/1.png"},
		},
	})

	res, err := e.Execute(context.Background(), req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(pub.lastReq.HTML, "<script>") {
		t.Errorf("HTML not sanitized: %q", pub.lastReq.HTML)
	}
	if !strings.Contains(pub.lastReq.ImageURL, "images/x/1.png") {
		t.Errorf("image URL not signed: %q", pub.lastReq.ImageURL)
	}
	if res.JSON["remote_url"] != "https://cms.example/42" {
		t.Errorf("unexpected publish result: %v", res.JSON)
	}
	if res.ProviderRef != "42" {
		t.Errorf("remote id must become provider ref: %q", res.ProviderRef)
	}
}

// --- Registry ---

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(NewFormatExecutor())

	if !r.Has(domain.StepOutputFormat) {
		t.Error("expected registered executor")
	}
	if _, err := r.Get(domain.StepImage); !errors.Is(err, ErrExecutorNotFound) {
		t.Errorf("expected ErrExecutorNotFound, got %v", err)
	}
	if types := r.Types(); len(types) != 1 || types[0] != "output-format" {
		t.Errorf("unexpected types: %v", types)
	}
}
