package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка. Регистрируются в default registry и отдаются
// через promhttp на /metrics каждого демона.
var (
	// ExecutionsStarted — количество начатых executions.
	ExecutionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "morana",
		Name:      "executions_started_total",
		Help:      "Number of executions the engine started processing.",
	})

	// ExecutionsFinished — количество завершённых executions по статусу.
	ExecutionsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "morana",
		Name:      "executions_finished_total",
		Help:      "Number of executions finished, by terminal status.",
	}, []string{"status"})

	// StepDuration — длительность выполнения шагов по типу.
	StepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "morana",
		Name:      "step_duration_seconds",
		Help:      "Step execution duration, by step type.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"type"})

	// StepsFinished — количество завершённых шагов по типу и статусу.
	StepsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "morana",
		Name:      "steps_finished_total",
		Help:      "Number of steps finished, by type and status.",
	}, []string{"type", "status"})

	// ProviderCost — накопленная стоимость вызовов провайдеров (USD).
	ProviderCost = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "morana",
		Name:      "provider_cost_usd_total",
		Help:      "Accumulated provider cost in USD, by provider.",
	}, []string{"provider"})

	// PollTimeouts — количество шагов, упавших по таймауту опроса очереди.
	PollTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "morana",
		Name:      "generation_poll_timeouts_total",
		Help:      "Async generation steps that exceeded the polling deadline.",
	}, []string{"type"})
)
