package engine

import (
	"testing"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

func TestResolveModel_Static(t *testing.T) {
	cfg := &domain.TextConfig{Model: "base-model"}
	if got := ResolveModel(cfg, NewContext("")); got != "base-model" {
		t.Errorf("expected base-model, got %q", got)
	}
}

func TestResolveModel_Auto(t *testing.T) {
	cfg := &domain.TextConfig{
		Model:              "A",
		ModelStrategy:      "auto",
		ModelStrategyStep:  0,
		ModelStrategyField: "complexity",
		ModelStrategyMap:   map[string]string{"low": "A", "high": "B"},
	}

	tests := []struct {
		name  string
		json  map[string]any
		want  string
	}{
		{"mapped value", map[string]any{"complexity": "high"}, "B"},
		{"unmapped value falls back", map[string]any{"complexity": "medium"}, "A"},
		{"missing field falls back", map[string]any{"other": 1}, "A"},
		{"no parsed json falls back", nil, "A"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := NewContext("")
			if tt.json != nil {
				ctx.AddStepOutput(0, "ignored", tt.json)
			}
			if got := ResolveModel(cfg, ctx); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
