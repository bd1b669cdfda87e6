// Package cli реализует команды morana-cli.
//
// CLI — тонкий клиент HTTP API, без прямого доступа к БД и очередям.
//
// Структура:
//   - client.go    — HTTP-клиент API и DTO
//   - output.go    — табличный и JSON вывод
//   - recipe.go    — команды управления recipes
//   - execution.go — команды управления executions
//   - schedule.go  — команды управления schedules
package cli
