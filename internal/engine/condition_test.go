package engine

import (
	"testing"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

func TestEvaluate_Operators(t *testing.T) {
	tests := []struct {
		name     string
		actual   any
		operator string
		expected any
		want     bool
	}{
		{"eq strings equal", "high", "eq", "high", true},
		{"eq strings differ", "high", "eq", "low", false},
		{"eq numbers json vs int", float64(3), "eq", 3, true},
		{"eq nil vs value", nil, "eq", "x", false},
		{"neq strings differ", "a", "neq", "b", true},
		{"neq strings equal", "a", "neq", "a", false},
		{"in member", "b", "in", []any{"a", "b"}, true},
		{"in not member", "c", "in", []any{"a", "b"}, false},
		{"in numbers", float64(2), "in", []any{1, 2}, true},
		{"in non-list expected", "a", "in", "a", false},
		{"unknown operator is true", "a", "gte", "b", true},
		{"empty operator is true", "a", "", "b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Evaluate(tt.actual, tt.operator, tt.expected); got != tt.want {
				t.Errorf("Evaluate(%v, %q, %v) = %v, want %v",
					tt.actual, tt.operator, tt.expected, got, tt.want)
			}
		})
	}
}

func TestEvaluateCondition_ReadsPriorStepJSON(t *testing.T) {
	ctx := NewContext("")
	ctx.AddStepOutput(0, `{"verdict":"pass"}`, map[string]any{"verdict": "pass"})

	cond := &domain.Condition{SourceStep: 0, Field: "verdict", Operator: "eq", Value: "pass"}
	if !EvaluateCondition(cond, ctx) {
		t.Error("condition on prior step field should hold")
	}

	cond.Value = "fail"
	if EvaluateCondition(cond, ctx) {
		t.Error("eq against different value should be false")
	}
}

func TestEvaluateCondition_MissingStepOrField(t *testing.T) {
	ctx := NewContext("")

	// Шаг не выполнялся: actual = nil.
	cond := &domain.Condition{SourceStep: 3, Field: "x", Operator: "eq", Value: "y"}
	if EvaluateCondition(cond, ctx) {
		t.Error("eq against missing step should be false")
	}

	// neq с отсутствующим полем — true.
	ctx.AddStepOutput(3, "{}", map[string]any{})
	cond.Operator = "neq"
	if !EvaluateCondition(cond, ctx) {
		t.Error("neq against missing field should be true")
	}
}

func TestEvaluateCondition_NilRuns(t *testing.T) {
	if !EvaluateCondition(nil, NewContext("")) {
		t.Error("step without condition always runs")
	}
}
