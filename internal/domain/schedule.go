package domain

import (
	"time"

	"github.com/google/uuid"
)

// Schedule — расписание повторного запуска pipeline.
//
// Schedule позволяет запускать pipeline:
// - По cron-выражению: "0 9 * * *" (каждый день в 9:00)
// - По интервалу: каждые N (Interval)
type Schedule struct {
	// Pipeline — имя pipeline, который запускается по расписанию.
	Pipeline string `json:"pipeline"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"     — каждый день в 9:00
	//   "*/5 * * * *"   — каждые 5 минут
	// Если задан CronExpr, Interval игнорируется.
	CronExpr string `json:"cron_expr,omitempty"`

	// Interval — интервал между запусками.
	// Используется если CronExpr не задан.
	Interval time.Duration `json:"interval,omitempty"`

	// Timezone — часовой пояс для вычисления времени.
	// По умолчанию: "UTC".
	Timezone string `json:"timezone"`

	// Inputs — начальный контекст, передаётся в каждый запуск.
	Inputs map[string]any `json:"inputs,omitempty"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastRunID — ID последнего запуска.
	LastRunID *uuid.UUID `json:"last_run_id,omitempty"`

	// Runs — сколько запусков уже выполнено.
	Runs int `json:"runs"`
}

// IsCron возвращает true, если расписание использует cron-выражение.
func (s *Schedule) IsCron() bool {
	return s.CronExpr != ""
}

// IsInterval возвращает true, если расписание использует интервал.
func (s *Schedule) IsInterval() bool {
	return s.CronExpr == "" && s.Interval > 0
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// RecordRun записывает информацию о запуске.
func (s *Schedule) RecordRun(runID uuid.UUID, nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.LastRunID = &runID
	s.NextDueAt = &nextDue
	s.Runs++
}
