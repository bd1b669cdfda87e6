package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

// Registry — реестр исполнителей шагов по типу. Потокобезопасен.
type Registry struct {
	mu        sync.RWMutex
	executors map[domain.StepType]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		executors: make(map[domain.StepType]Executor),
	}
}

// Register регистрирует исполнителя.
// Исполнитель с тем же типом будет перезаписан.
func (r *Registry) Register(e Executor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.executors[e.Type()] = e
}

// Get возвращает исполнителя по типу шага.
// Возвращает ErrExecutorNotFound, если исполнитель не зарегистрирован.
func (r *Registry) Get(stepType domain.StepType) (Executor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, exists := r.executors[stepType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrExecutorNotFound, stepType)
	}
	return e, nil
}

// Has проверяет, зарегистрирован ли исполнитель.
func (r *Registry) Has(stepType domain.StepType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.executors[stepType]
	return exists
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.executors))
	for t := range r.executors {
		types = append(types, string(t))
	}
	sort.Strings(types)
	return types
}
