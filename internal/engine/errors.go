package engine

import (
	"errors"
	"fmt"
)

// Ошибки валидации recipe.
var (
	// ErrEmptySteps — recipe без шагов.
	ErrEmptySteps = errors.New("recipe has no steps")

	// ErrBadStepIndex — индексы шагов не непрерывны от 0.
	ErrBadStepIndex = errors.New("step indices must be contiguous from 0")

	// ErrUnknownStepType — неизвестный тип шага.
	ErrUnknownStepType = errors.New("unknown step type")

	// ErrConfigMismatch — заполненный вариант конфигурации не соответствует типу шага.
	ErrConfigMismatch = errors.New("step config does not match step type")

	// ErrForwardReference — условие или шаблон ссылается на шаг с индексом >= своего.
	ErrForwardReference = errors.New("reference to a later step")

	// ErrUnknownOperator — неизвестный оператор условия.
	ErrUnknownOperator = errors.New("unknown condition operator")
)

// ValidationError — ошибка валидации с привязкой к шагу и полю.
type ValidationError struct {
	StepIndex int
	Field     string
	Message   string
	Err       error
}

// NewValidationError создаёт ValidationError.
func NewValidationError(stepIndex int, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepIndex: stepIndex,
		Field:     field,
		Message:   message,
		Err:       err,
	}
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("step %d: %s: %s", e.StepIndex, e.Field, e.Message)
}

// Unwrap возвращает обёрнутую sentinel-ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
