// Package api реализует HTTP API движка Morana.
//
// Структура:
//   - handler.go           — Handler с зависимостями
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — Recovery и Logging middleware
//   - response.go          — envelope ответов и коды ошибок
//   - dto.go               — request/response DTOs
//   - recipe_handler.go    — CRUD recipes с валидацией при сохранении
//   - execution_handler.go — запуск, просмотр и отмена executions
//   - schedule_handler.go  — CRUD schedules
//
// Все ответы завёрнуты в envelope: {"data": ...} для успеха,
// {"error": {"code": ..., "message": ...}} для ошибок.
package api
