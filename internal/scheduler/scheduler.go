package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
)

// Job — один запуск pipeline по расписанию.
// Возвращает ошибку, только если запуск не состоялся (например, pipeline невалиден).
type Job func(ctx context.Context, inputs map[string]any) (*domain.ExecutionResult, error)

// Scheduler запускает pipeline по расписанию, по одному запуску за раз.
type Scheduler struct {
	sched        *domain.Schedule
	job          Job
	logger       *slog.Logger
	maxRuns      int
	tickInterval time.Duration
	now          func() time.Time
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedule *domain.Schedule
	Job      Job
	Logger   *slog.Logger

	// MaxRuns — после стольких запусков Run завершается (0 — без ограничения).
	MaxRuns int

	// TickInterval — как часто проверять, пора ли запускать (default: 1s).
	TickInterval time.Duration

	// Now — источник времени (default: time.Now).
	Now func() time.Time
}

// New создаёт новый Scheduler.
func New(cfg Config) (*Scheduler, error) {
	if cfg.Schedule == nil || cfg.Job == nil {
		return nil, fmt.Errorf("%w: schedule and job are required", ErrInvalidSchedule)
	}
	if err := ValidateSchedule(cfg.Schedule); err != nil {
		return nil, err
	}

	tickInterval := cfg.TickInterval
	if tickInterval <= 0 {
		tickInterval = time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Scheduler{
		sched:        cfg.Schedule,
		job:          cfg.Job,
		logger:       logger.With("component", "scheduler", "pipeline", cfg.Schedule.Pipeline),
		maxRuns:      cfg.MaxRuns,
		tickInterval: tickInterval,
		now:          now,
	}, nil
}

// Schedule возвращает текущее состояние расписания.
func (s *Scheduler) Schedule() domain.Schedule {
	return *s.sched
}

// Done возвращает true, если лимит запусков исчерпан.
func (s *Scheduler) Done() bool {
	return s.maxRuns > 0 && s.sched.Runs >= s.maxRuns
}

// Tick выполняет один тик планировщика.
//
// 1. Если NextDueAt не задан, вычисляет его и выходит
// 2. Если время не пришло, выходит
// 3. Запускает job с копией Inputs
// 4. Записывает запуск и вычисляет следующее время
//
// Возвращает true, если запуск был выполнен. Ошибка job не останавливает расписание.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	now := s.now()

	if s.sched.NextDueAt == nil {
		next, err := CalculateNextDue(s.sched, now)
		if err != nil {
			return false, fmt.Errorf("calculate next due: %w", err)
		}
		s.sched.NextDueAt = &next
		s.logger.Info("schedule armed", "next_due_at", next)
		return false, nil
	}

	if !s.sched.IsDue(now) {
		return false, nil
	}

	result, err := s.job(ctx, maps.Clone(s.sched.Inputs))
	if err == nil && result == nil {
		err = errors.New("job returned no result")
	}

	next, nextErr := CalculateNextDue(s.sched, now)
	if nextErr != nil {
		return false, fmt.Errorf("calculate next due: %w", nextErr)
	}

	if err != nil {
		s.logger.Error("scheduled run failed to start", "error", err, "next_due_at", next)
		s.sched.NextDueAt = &next
		return false, nil
	}

	s.sched.RecordRun(result.RunID, next)
	s.logger.Info("scheduled run finished",
		"run_id", result.RunID,
		"status", result.Status,
		"runs", s.sched.Runs,
		"next_due_at", next,
	)

	return true, nil
}

// Run вызывает Tick каждые TickInterval, пока не отменён ctx или не исчерпан MaxRuns.
// Отмена ctx — штатное завершение, ошибки не возвращается.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"cron", s.sched.CronExpr,
		"interval", s.sched.Interval,
		"max_runs", s.maxRuns,
	)

	if _, err := s.Tick(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for !s.Done() {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "runs", s.sched.Runs)
			return nil
		case <-ticker.C:
			if _, err := s.Tick(ctx); err != nil {
				return err
			}
		}
	}

	s.logger.Info("scheduler finished", "runs", s.sched.Runs)
	return nil
}
