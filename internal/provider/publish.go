package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPPublisher — адаптер публикации в CMS.
//
// Endpoint и токен берутся из расшифрованных учётных данных интеграции:
// {"api_url": "...", "token": "..."}.
type HTTPPublisher struct{}

type publishCredentials struct {
	APIURL string `json:"api_url"`
	Token  string `json:"token"`
}

type publishBody struct {
	Title    string         `json:"title"`
	Lead     string         `json:"lead,omitempty"`
	HTML     string         `json:"html"`
	ImageURL string         `json:"image_url,omitempty"`
	Meta     map[string]any `json:"meta,omitempty"`
}

// Publish отправляет материал во внешнюю систему.
func (p *HTTPPublisher) Publish(ctx context.Context, req PublishRequest) (*PublishResult, error) {
	var creds publishCredentials
	if err := json.Unmarshal(req.Credentials, &creds); err != nil {
		return nil, fmt.Errorf("%w: bad credentials: %v", ErrProviderRequest, err)
	}
	if creds.APIURL == "" {
		return nil, fmt.Errorf("%w: credentials have no api_url", ErrProviderRequest)
	}

	body := publishBody{
		Title:    req.Title,
		Lead:     req.Lead,
		HTML:     req.HTML,
		ImageURL: req.ImageURL,
		Meta:     req.Meta,
	}

	var out PublishResult
	if err := doJSON(ctx, http.MethodPost, creds.APIURL, creds.Token, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
