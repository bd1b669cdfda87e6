package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"time"
)

// HTTPTextGenerator — адаптер chat-style REST-сервиса генерации текста.
//
// POST {base}/v1/chat
// Ответ: {"text": "...", "tokens_in": N, "tokens_out": N, "ref_id": "..."}
type HTTPTextGenerator struct {
	BaseURL string
	APIKey  string
}

type chatRequest struct {
	Model     string `json:"model"`
	System    string `json:"system,omitempty"`
	Prompt    string `json:"prompt"`
	Image     string `json:"image,omitempty"` // base64
	WebSearch bool   `json:"web_search,omitempty"`
}

type chatResponse struct {
	Text      string `json:"text"`
	TokensIn  int    `json:"tokens_in"`
	TokensOut int    `json:"tokens_out"`
	RefID     string `json:"ref_id"`
}

// Generate выполняет один вызов генерации текста.
//
// При включённом веб-поиске отказ поискового варианта приводит к
// повторному вызову без поиска — fallback внутренний для адаптера,
// движок о нём не знает.
func (g *HTTPTextGenerator) Generate(ctx context.Context, req GenerateRequest) (*Generation, error) {
	start := time.Now()

	out, err := g.call(ctx, req, req.WebSearch)
	if err != nil && req.WebSearch {
		out, err = g.call(ctx, req, false)
	}
	if err != nil {
		return nil, err
	}
	if out.Text == "" {
		return nil, ErrEmptyResult
	}

	return &Generation{
		Text:      out.Text,
		TokensIn:  out.TokensIn,
		TokensOut: out.TokensOut,
		LatencyMs: time.Since(start).Milliseconds(),
		RefID:     out.RefID,
	}, nil
}

func (g *HTTPTextGenerator) call(ctx context.Context, req GenerateRequest, webSearch bool) (*chatResponse, error) {
	body := chatRequest{
		Model:     req.Model,
		System:    req.System,
		Prompt:    req.Prompt,
		WebSearch: webSearch,
	}
	if len(req.Image) > 0 {
		body.Image = base64.StdEncoding.EncodeToString(req.Image)
	}

	var out chatResponse
	if err := doJSON(ctx, http.MethodPost, g.BaseURL+"/v1/chat", g.APIKey, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
