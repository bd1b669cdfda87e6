package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Recipes
	mux.Handle("GET /api/v1/recipes", chain(http.HandlerFunc(h.ListRecipes)))
	mux.Handle("POST /api/v1/recipes", chain(http.HandlerFunc(h.CreateRecipe)))
	mux.Handle("GET /api/v1/recipes/{id}", chain(http.HandlerFunc(h.GetRecipe)))
	mux.Handle("PUT /api/v1/recipes/{id}", chain(http.HandlerFunc(h.UpdateRecipe)))
	mux.Handle("DELETE /api/v1/recipes/{id}", chain(http.HandlerFunc(h.DeleteRecipe)))

	// Executions
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("POST /api/v1/recipes/{id}/executions", chain(http.HandlerFunc(h.CreateExecution)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))
	mux.Handle("POST /api/v1/executions/{id}/cancel", chain(http.HandlerFunc(h.CancelExecution)))
	mux.Handle("GET /api/v1/executions/{id}/steps", chain(http.HandlerFunc(h.ListExecutionSteps)))
	mux.Handle("GET /api/v1/executions/{id}/costs", chain(http.HandlerFunc(h.GetExecutionCosts)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/recipes/{id}/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))
}
