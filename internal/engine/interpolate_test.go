package engine

import "testing"

func TestInterpolate_FixedTokens(t *testing.T) {
	ctx := NewContext("исходный текст")
	ctx.AddStepOutput(0, "вывод шага 0", nil)

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "original input",
			template: "Вход: {{original_input}}",
			expected: "Вход: исходный текст",
		},
		{
			name:     "previous output",
			template: "Продолжи: {{input}}",
			expected: "Продолжи: вывод шага 0",
		},
		{
			name:     "no tokens",
			template: "Plain text without tokens",
			expected: "Plain text without tokens",
		},
		{
			name:     "unknown token untouched",
			template: "{{something_else}}",
			expected: "{{something_else}}",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.template, ctx); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestInterpolate_StepTokens(t *testing.T) {
	ctx := NewContext("")
	ctx.AddStepOutput(0, "первый", nil)
	ctx.AddStepOutput(2, `{"score": 5}`, map[string]any{"score": float64(5)})

	tests := []struct {
		name     string
		template string
		expected string
	}{
		{
			name:     "step text",
			template: "[{{step.0.text}}]",
			expected: "[первый]",
		},
		{
			name:     "step json",
			template: "{{step.2.json}}",
			expected: `{"score":5}`,
		},
		{
			name:     "absent step text is empty",
			template: "[{{step.1.text}}]",
			expected: "[]",
		},
		{
			name:     "absent step json is empty",
			template: "[{{step.7.json}}]",
			expected: "[]",
		},
		{
			name:     "json of step without parsed output is empty",
			template: "[{{step.0.json}}]",
			expected: "[]",
		},
		{
			name:     "exact index only",
			template: "{{step.2.text}}",
			expected: `{"score": 5}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Interpolate(tt.template, ctx); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestInterpolate_NoRecursion(t *testing.T) {
	// Подставленный текст не сканируется повторно.
	ctx := NewContext("")
	ctx.AddStepOutput(0, "{{input}}", nil)
	ctx.PreviousOutput = "не должно появиться"

	got := Interpolate("{{step.0.text}}", ctx)
	if got != "{{input}}" {
		t.Errorf("expected literal token, got %q", got)
	}
}

func TestInterpolate_Idempotent(t *testing.T) {
	ctx := NewContext("x")
	tmpl := "текст без единого токена, даже с { и } по отдельности"
	if got := Interpolate(tmpl, ctx); got != tmpl {
		t.Errorf("template without tokens must be unchanged, got %q", got)
	}
}
