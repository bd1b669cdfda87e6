package engine

import (
	"errors"
	"testing"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

func textStep(index int, prompt string) domain.Step {
	return domain.Step{
		Index: index,
		Name:  "text",
		Type:  domain.StepTextGeneration,
		Config: domain.StepConfig{
			Text: &domain.TextConfig{Model: "m", Prompt: prompt},
		},
	}
}

func TestValidate_OK(t *testing.T) {
	r := &domain.Recipe{
		Steps: []domain.Step{
			{
				Index:  0,
				Type:   domain.StepTranscription,
				Config: domain.StepConfig{Transcription: &domain.TranscriptionConfig{}},
			},
			textStep(1, "Перескажи: {{step.0.text}}"),
			{
				Index:  2,
				Type:   domain.StepOutputFormat,
				Config: domain.StepConfig{Format: &domain.FormatConfig{Formats: []string{"html"}}},
			},
		},
	}

	if err := Validate(r); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		recipe  *domain.Recipe
		wantErr error
	}{
		{
			name:    "empty steps",
			recipe:  &domain.Recipe{},
			wantErr: ErrEmptySteps,
		},
		{
			name: "non-contiguous indices",
			recipe: &domain.Recipe{
				Steps: []domain.Step{textStep(0, "a"), textStep(2, "b")},
			},
			wantErr: ErrBadStepIndex,
		},
		{
			name: "unknown type",
			recipe: &domain.Recipe{
				Steps: []domain.Step{{Index: 0, Type: "magic"}},
			},
			wantErr: ErrUnknownStepType,
		},
		{
			name: "config mismatch",
			recipe: &domain.Recipe{
				Steps: []domain.Step{{
					Index:  0,
					Type:   domain.StepImage,
					Config: domain.StepConfig{Text: &domain.TextConfig{Model: "m"}},
				}},
			},
			wantErr: ErrConfigMismatch,
		},
		{
			name: "forward template reference",
			recipe: &domain.Recipe{
				Steps: []domain.Step{textStep(0, "{{step.1.text}}"), textStep(1, "b")},
			},
			wantErr: ErrForwardReference,
		},
		{
			name: "self template reference",
			recipe: &domain.Recipe{
				Steps: []domain.Step{textStep(0, "{{step.0.text}}")},
			},
			wantErr: ErrForwardReference,
		},
		{
			name: "condition on later step",
			recipe: &domain.Recipe{
				Steps: func() []domain.Step {
					s := textStep(0, "a")
					s.Condition = &domain.Condition{SourceStep: 0, Field: "f", Operator: "eq", Value: 1}
					return []domain.Step{s}
				}(),
			},
			wantErr: ErrForwardReference,
		},
		{
			name: "unknown operator rejected at save time",
			recipe: &domain.Recipe{
				Steps: func() []domain.Step {
					a := textStep(0, "a")
					b := textStep(1, "b")
					b.Condition = &domain.Condition{SourceStep: 0, Field: "f", Operator: "gte", Value: 1}
					return []domain.Step{a, b}
				}(),
			},
			wantErr: ErrUnknownOperator,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.recipe)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_AutoStrategyForwardRef(t *testing.T) {
	s := textStep(0, "a")
	s.Config.Text.ModelStrategy = "auto"
	s.Config.Text.ModelStrategyStep = 0
	s.Config.Text.ModelStrategyMap = map[string]string{"x": "y"}

	err := Validate(&domain.Recipe{Steps: []domain.Step{s}})
	if !errors.Is(err, ErrForwardReference) {
		t.Errorf("expected ErrForwardReference, got %v", err)
	}
}
