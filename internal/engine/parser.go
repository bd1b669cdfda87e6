package engine

import (
	"fmt"
	"strconv"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// Допустимые типы шагов.
var validStepTypes = map[domain.StepType]bool{
	domain.StepTranscription:  true,
	domain.StepTextGeneration: true,
	domain.StepImage:          true,
	domain.StepVideo:          true,
	domain.StepOutputFormat:   true,
	domain.StepPublish:        true,
}

// Допустимые операторы условий.
var validOperators = map[string]bool{
	OpEq:  true,
	OpNeq: true,
	OpIn:  true,
}

// Validate выполняет полную валидацию recipe.
//
// Проверяет:
// - Наличие шагов
// - Непрерывность индексов от 0
// - Корректность типов шагов
// - Соответствие варианта конфигурации типу
// - Ссылки условий и шаблонов только на более ранние шаги
// - Известность операторов условий
func Validate(r *domain.Recipe) error {
	if r == nil || len(r.Steps) == 0 {
		return ErrEmptySteps
	}

	for i := range r.Steps {
		step := &r.Steps[i]

		if step.Index != i {
			return NewValidationError(step.Index, "index",
				fmt.Sprintf("expected index %d", i), ErrBadStepIndex)
		}

		if err := ValidateStep(step); err != nil {
			return err
		}
	}

	return nil
}

// ValidateStep валидирует один шаг.
func ValidateStep(step *domain.Step) error {
	if !validStepTypes[step.Type] {
		return NewValidationError(step.Index, "type",
			fmt.Sprintf("unknown step type: %s", step.Type), ErrUnknownStepType)
	}

	if variant := step.Config.Variant(); variant != step.Type {
		return NewValidationError(step.Index, "config",
			fmt.Sprintf("config variant %q does not match type %q", variant, step.Type),
			ErrConfigMismatch)
	}

	if err := validateCondition(step); err != nil {
		return err
	}

	return validateTemplateRefs(step)
}

// validateCondition проверяет условие шага.
func validateCondition(step *domain.Step) error {
	cond := step.Condition
	if cond == nil {
		return nil
	}

	if cond.SourceStep >= step.Index {
		return NewValidationError(step.Index, "condition",
			fmt.Sprintf("condition references step %d", cond.SourceStep),
			ErrForwardReference)
	}

	if !validOperators[cond.Operator] {
		return NewValidationError(step.Index, "condition",
			fmt.Sprintf("operator %q", cond.Operator), ErrUnknownOperator)
	}

	return nil
}

// validateTemplateRefs проверяет, что шаблоны шага ссылаются
// только на более ранние шаги.
func validateTemplateRefs(step *domain.Step) error {
	var templates []string
	if cfg := step.Config.Text; cfg != nil {
		templates = append(templates, cfg.Prompt, cfg.System)

		if cfg.ModelStrategy == ModelStrategyAuto && cfg.ModelStrategyStep >= step.Index {
			return NewValidationError(step.Index, "model_strategy_step",
				fmt.Sprintf("model strategy references step %d", cfg.ModelStrategyStep),
				ErrForwardReference)
		}
	}

	for _, tmpl := range templates {
		for _, m := range tokenRe.FindAllStringSubmatch(tmpl, -1) {
			if m[2] == "" {
				continue // original_input / input
			}
			ref, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			if ref >= step.Index {
				return NewValidationError(step.Index, "prompt",
					fmt.Sprintf("template references step %d", ref),
					ErrForwardReference)
			}
		}
	}

	return nil
}

// IsValidStepType проверяет, является ли тип шага допустимым.
func IsValidStepType(t domain.StepType) bool {
	return validStepTypes[t]
}
