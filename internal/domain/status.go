package domain

// ExecutionStatus — статус выполнения execution.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → DONE
//	                  ↘ ERROR
//	          (или) → CANCELLED (кооперативная отмена на границе шагов)
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, но ещё не начал выполняться.
	ExecutionStatusPending ExecutionStatus = "PENDING"

	// ExecutionStatusRunning — execution в процессе выполнения.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusDone — все шаги обработаны (включая пропущенные).
	ExecutionStatusDone ExecutionStatus = "DONE"

	// ExecutionStatusError — первый отказ шага завершает весь execution (fail-fast).
	ExecutionStatusError ExecutionStatus = "ERROR"

	// ExecutionStatusCancelled — отменён по внешнему запросу между шагами.
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (execution завершён).
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusDone, ExecutionStatusError, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// StepResultStatus — статус выполнения одного шага.
//
// Жизненный цикл:
//
//	RUNNING → DONE
//	        ↘ ERROR
//	        ↘ SKIPPED (условие шага не выполнено)
type StepResultStatus string

const (
	// StepResultStatusRunning — шаг выполняется.
	StepResultStatusRunning StepResultStatus = "RUNNING"

	// StepResultStatusDone — шаг успешно завершён.
	StepResultStatusDone StepResultStatus = "DONE"

	// StepResultStatusError — шаг завершился с ошибкой.
	StepResultStatusError StepResultStatus = "ERROR"

	// StepResultStatusSkipped — шаг пропущен по условию.
	// Пропущенный шаг никогда не изменяет накопленный вывод.
	StepResultStatusSkipped StepResultStatus = "SKIPPED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepResultStatus) IsTerminal() bool {
	switch s {
	case StepResultStatusDone, StepResultStatusError, StepResultStatusSkipped:
		return true
	default:
		return false
	}
}
