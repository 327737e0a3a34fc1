package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/shaiso/Conveyor/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCalculateNextDue(t *testing.T) {
	from := time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC)

	tests := []struct {
		name     string
		sched    domain.Schedule
		expected time.Time
	}{
		{
			name:     "interval",
			sched:    domain.Schedule{Pipeline: "p", Interval: 90 * time.Second},
			expected: from.Add(90 * time.Second),
		},
		{
			name:     "cron daily",
			sched:    domain.Schedule{Pipeline: "p", CronExpr: "0 9 * * *"},
			expected: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			name:     "cron every 5 minutes",
			sched:    domain.Schedule{Pipeline: "p", CronExpr: "*/5 * * * *"},
			expected: time.Date(2026, 3, 10, 8, 35, 0, 0, time.UTC),
		},
		{
			name:     "descriptor",
			sched:    domain.Schedule{Pipeline: "p", CronExpr: "@hourly"},
			expected: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
		},
		{
			// 9:00 в Москве (UTC+3) — это 6:00 UTC, поэтому следующий запуск завтра
			name:     "cron with timezone",
			sched:    domain.Schedule{Pipeline: "p", CronExpr: "0 9 * * *", Timezone: "Europe/Moscow"},
			expected: time.Date(2026, 3, 11, 6, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := CalculateNextDue(&tt.sched, from)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !next.Equal(tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, next)
			}
		})
	}
}

func TestValidateSchedule(t *testing.T) {
	tests := []struct {
		name  string
		sched domain.Schedule
		valid bool
	}{
		{"cron", domain.Schedule{Pipeline: "p", CronExpr: "0 * * * *"}, true},
		{"interval", domain.Schedule{Pipeline: "p", Interval: time.Minute}, true},
		{"no pipeline", domain.Schedule{CronExpr: "0 * * * *"}, false},
		{"neither", domain.Schedule{Pipeline: "p"}, false},
		{"both", domain.Schedule{Pipeline: "p", CronExpr: "0 * * * *", Interval: time.Minute}, false},
		{"bad cron", domain.Schedule{Pipeline: "p", CronExpr: "every day"}, false},
		{"bad timezone", domain.Schedule{Pipeline: "p", Interval: time.Minute, Timezone: "Mars/Base"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSchedule(&tt.sched)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidSchedule) {
				t.Errorf("expected ErrInvalidSchedule, got %v", err)
			}
		})
	}
}

// fakeClock — управляемое время для Tick.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func TestTick(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}

	var calls []map[string]any
	job := func(_ context.Context, in map[string]any) (*domain.ExecutionResult, error) {
		in["mutated"] = true
		calls = append(calls, in)
		return &domain.ExecutionResult{RunID: uuid.New(), Status: domain.PipelineStatusCompleted}, nil
	}

	sched := &domain.Schedule{Pipeline: "p", Interval: time.Minute, Inputs: map[string]any{"x": 1}}
	s, err := New(Config{Schedule: sched, Job: job, Logger: quietLogger(), Now: clock.Now})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	// Первый тик только вычисляет NextDueAt
	ran, err := s.Tick(context.Background())
	if err != nil || ran {
		t.Fatalf("first tick should arm the schedule: ran=%v err=%v", ran, err)
	}
	if !sched.NextDueAt.Equal(clock.now.Add(time.Minute)) {
		t.Fatalf("unexpected next due: %v", sched.NextDueAt)
	}

	clock.now = clock.now.Add(30 * time.Second)
	if ran, _ := s.Tick(context.Background()); ran {
		t.Fatal("should not run before next due")
	}

	clock.now = clock.now.Add(30 * time.Second)
	ran, err = s.Tick(context.Background())
	if err != nil || !ran {
		t.Fatalf("expected run: ran=%v err=%v", ran, err)
	}

	if len(calls) != 1 || calls[0]["x"] != 1 {
		t.Fatalf("unexpected job calls: %v", calls)
	}
	if _, ok := sched.Inputs["mutated"]; ok {
		t.Error("job should receive a copy of inputs")
	}
	if sched.Runs != 1 || sched.LastRunID == nil || !sched.NextDueAt.Equal(clock.now.Add(time.Minute)) {
		t.Errorf("unexpected schedule state: %+v", sched)
	}
}

func TestTick_JobErrorKeepsSchedule(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)}
	due := clock.now

	job := func(context.Context, map[string]any) (*domain.ExecutionResult, error) {
		return nil, errors.New("no start node")
	}

	sched := &domain.Schedule{Pipeline: "p", Interval: time.Minute, NextDueAt: &due}
	s, err := New(Config{Schedule: sched, Job: job, Logger: quietLogger(), Now: clock.Now})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ran, err := s.Tick(context.Background())
	if err != nil || ran {
		t.Fatalf("unexpected tick result: ran=%v err=%v", ran, err)
	}
	if sched.Runs != 0 || !sched.NextDueAt.Equal(clock.now.Add(time.Minute)) {
		t.Errorf("failed start should only move next due: %+v", sched)
	}
}

func TestRun_StopsAfterMaxRuns(t *testing.T) {
	runs := 0
	job := func(context.Context, map[string]any) (*domain.ExecutionResult, error) {
		runs++
		return &domain.ExecutionResult{RunID: uuid.New(), Status: domain.PipelineStatusCompleted}, nil
	}

	s, err := New(Config{
		Schedule:     &domain.Schedule{Pipeline: "p", Interval: 10 * time.Millisecond},
		Job:          job,
		Logger:       quietLogger(),
		MaxRuns:      3,
		TickInterval: 2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if runs != 3 || s.Schedule().Runs != 3 || !s.Done() {
		t.Errorf("expected 3 runs, got %d (schedule %d)", runs, s.Schedule().Runs)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s, err := New(Config{
		Schedule: &domain.Schedule{Pipeline: "p", CronExpr: "0 0 1 1 *"},
		Job: func(context.Context, map[string]any) (*domain.ExecutionResult, error) {
			t.Error("job should not run")
			return nil, nil
		},
		Logger:       quietLogger(),
		TickInterval: time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := s.Run(ctx); err != nil {
		t.Errorf("cancellation should not be an error: %v", err)
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Config{Schedule: &domain.Schedule{Pipeline: "p"}, Job: func(context.Context, map[string]any) (*domain.ExecutionResult, error) { return nil, nil }}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule, got %v", err)
	}
	if _, err := New(Config{Schedule: &domain.Schedule{Pipeline: "p", Interval: time.Second}}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("expected ErrInvalidSchedule without job, got %v", err)
	}
}
