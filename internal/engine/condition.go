package engine

import (
	"reflect"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// Операторы условий.
const (
	OpEq  = "eq"
	OpNeq = "neq"
	OpIn  = "in"
)

// Evaluate вычисляет предикат условия.
//
// Операторы:
//   - "eq"  — строгое равенство
//   - "neq" — строгое неравенство
//   - "in"  — членство (expected должен быть списком)
//
// Неизвестный оператор — true: шаг выполняется, если не доказано
// обратное. На это поведение нельзя полагаться для критичных
// пропусков; валидация recipe отклоняет неизвестные операторы
// при сохранении.
func Evaluate(actual any, operator string, expected any) bool {
	switch operator {
	case OpEq:
		return valueEqual(actual, expected)
	case OpNeq:
		return !valueEqual(actual, expected)
	case OpIn:
		list, ok := expected.([]any)
		if !ok {
			return false
		}
		for _, item := range list {
			if valueEqual(actual, item) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// EvaluateCondition вычисляет условие шага против контекста.
//
// Поле читается из распарсенного JSON более раннего шага, никогда
// из текстового вывода. Отсутствующий шаг или поле даёт actual = nil.
func EvaluateCondition(cond *domain.Condition, ctx *Context) bool {
	if cond == nil {
		return true
	}

	var actual any
	if out := ctx.StepJSON(cond.SourceStep); out != nil {
		actual = out[cond.Field]
	}

	return Evaluate(actual, cond.Operator, cond.Value)
}

// valueEqual сравнивает JSON-значения. Числа сравниваются как float64
// (json.Unmarshal в any всегда даёт float64), остальное — глубоко.
func valueEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
