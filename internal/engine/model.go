package engine

import (
	"fmt"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// ModelStrategyAuto — динамический выбор модели по выводу раннего шага.
//
// Дешёвый классифицирующий шаг в начале recipe определяет, какая модель
// обслужит дорогие шаги дальше.
const ModelStrategyAuto = "auto"

// ResolveModel возвращает идентификатор модели для шага генерации текста.
//
// При стратегии "auto" читается поле из JSON-вывода указанного шага и
// ищется в конечной карте значение → модель; отсутствующий ключ,
// отсутствующее поле или невыполненный шаг — fallback на статическую
// модель по умолчанию.
func ResolveModel(cfg *domain.TextConfig, ctx *Context) string {
	if cfg.ModelStrategy != ModelStrategyAuto || len(cfg.ModelStrategyMap) == 0 {
		return cfg.Model
	}

	out := ctx.StepJSON(cfg.ModelStrategyStep)
	if out == nil {
		return cfg.Model
	}

	value, ok := out[cfg.ModelStrategyField]
	if !ok {
		return cfg.Model
	}

	key := fmt.Sprintf("%v", value)
	if model, ok := cfg.ModelStrategyMap[key]; ok {
		return model
	}
	return cfg.Model
}
