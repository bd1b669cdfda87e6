package api

import (
	"log/slog"

	"github.com/dan-auerbach/morana-sub000/internal/mq"
	"github.com/dan-auerbach/morana-sub000/internal/repo"
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	recipeRepo     *repo.RecipeRepo
	executionRepo  *repo.ExecutionRepo
	stepResultRepo *repo.StepResultRepo
	costRepo       *repo.CostRepo
	scheduleRepo   *repo.ScheduleRepo
	publisher      *mq.Publisher
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	RecipeRepo     *repo.RecipeRepo
	ExecutionRepo  *repo.ExecutionRepo
	StepResultRepo *repo.StepResultRepo
	CostRepo       *repo.CostRepo
	ScheduleRepo   *repo.ScheduleRepo
	Publisher      *mq.Publisher
	Logger         *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		recipeRepo:     cfg.RecipeRepo,
		executionRepo:  cfg.ExecutionRepo,
		stepResultRepo: cfg.StepResultRepo,
		costRepo:       cfg.CostRepo,
		scheduleRepo:   cfg.ScheduleRepo,
		publisher:      cfg.Publisher,
		logger:         cfg.Logger,
	}
}
