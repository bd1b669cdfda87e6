package domain

import (
	"time"

	"github.com/google/uuid"
)

// CostEntry — запись cost ledger об одном вызове провайдера.
//
// Движок агрегирует записи в суммарную стоимость execution и
// постатейную разбивку. Записи сохраняются и при отказе execution.
type CostEntry struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// ExecutionID — ссылка на execution.
	ExecutionID uuid.UUID `json:"execution_id"`

	// StepIndex — индекс шага, из которого сделан вызов.
	StepIndex int `json:"step_index"`

	// Provider — имя провайдера ("transcribe", "text", "imagegen", ...).
	Provider string `json:"provider"`

	// Model — идентификатор модели.
	Model string `json:"model,omitempty"`

	// Units — количество единиц работы.
	Units float64 `json:"units"`

	// UnitKind — вид единицы: "tokens", "seconds", "images", "minutes".
	UnitKind string `json:"unit_kind"`

	// Cost — стоимость вызова (USD).
	Cost float64 `json:"cost"`

	// LatencyMs — длительность вызова провайдера.
	LatencyMs int64 `json:"latency_ms"`

	// CreatedAt — время записи.
	CreatedAt time.Time `json:"created_at"`
}
