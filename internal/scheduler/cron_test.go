package scheduler

import (
	"testing"
	"time"

	"github.com/dan-auerbach/morana-sub000/internal/domain"
)

func TestCalculateNextDue_Interval(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 3600, Timezone: "UTC"}
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := from.Add(time.Hour); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_Cron(t *testing.T) {
	sched := &domain.Schedule{CronExpr: "0 9 * * *", Timezone: "UTC"}
	from := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	next, err := CalculateNextDue(sched, from)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if want := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC); !next.Equal(want) {
		t.Errorf("expected %v, got %v", want, next)
	}
}

func TestCalculateNextDue_BadTimezoneFallsBackToUTC(t *testing.T) {
	sched := &domain.Schedule{IntervalSec: 60, Timezone: "Not/AZone"}
	if _, err := CalculateNextDue(sched, time.Now()); err != nil {
		t.Errorf("bad timezone must not fail: %v", err)
	}
}

func TestCalculateNextDue_Empty(t *testing.T) {
	if _, err := CalculateNextDue(&domain.Schedule{Timezone: "UTC"}, time.Now()); err == nil {
		t.Error("expected error for schedule without cron or interval")
	}
}

func TestValidateCronExpr(t *testing.T) {
	if err := ValidateCronExpr("*/5 * * * *"); err != nil {
		t.Errorf("valid expression rejected: %v", err)
	}
	if err := ValidateCronExpr("not a cron"); err == nil {
		t.Error("invalid expression accepted")
	}
}
