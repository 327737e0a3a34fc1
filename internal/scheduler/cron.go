package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/Conveyor/internal/domain"
)

// ErrInvalidSchedule — расписание нельзя использовать.
var ErrInvalidSchedule = errors.New("invalid schedule")

// cronParser — парсер cron-выражений (5 полей и дескрипторы вроде @hourly).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// CalculateNextDue вычисляет следующее время выполнения для schedule.
// Для интервалов просто добавляет Interval к from.
//
// Учитывает timezone schedule.
func CalculateNextDue(sched *domain.Schedule, from time.Time) (time.Time, error) {
	loc, err := loadLocation(sched.Timezone)
	if err != nil {
		// Fallback на UTC если timezone невалидный
		loc = time.UTC
	}

	fromInTz := from.In(loc)

	if sched.IsCron() {
		return calculateNextCron(sched.CronExpr, fromInTz)
	}

	if sched.IsInterval() {
		return fromInTz.Add(sched.Interval).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("%w: neither cron expression nor interval", ErrInvalidSchedule)
}

// calculateNextCron вычисляет следующее время по cron-выражению.
func calculateNextCron(cronExpr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}

	return schedule.Next(from).UTC(), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}

// ValidateSchedule проверяет расписание перед запуском планировщика.
func ValidateSchedule(sched *domain.Schedule) error {
	if sched.Pipeline == "" {
		return fmt.Errorf("%w: pipeline is required", ErrInvalidSchedule)
	}
	if sched.CronExpr != "" && sched.Interval > 0 {
		return fmt.Errorf("%w: cron expression and interval are mutually exclusive", ErrInvalidSchedule)
	}
	if sched.Interval < 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidSchedule)
	}
	if !sched.IsCron() && !sched.IsInterval() {
		return fmt.Errorf("%w: neither cron expression nor interval", ErrInvalidSchedule)
	}
	if sched.IsCron() {
		if err := ValidateCronExpr(sched.CronExpr); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSchedule, err)
		}
	}
	if _, err := loadLocation(sched.Timezone); err != nil {
		return fmt.Errorf("%w: timezone %q: %v", ErrInvalidSchedule, sched.Timezone, err)
	}
	return nil
}

func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}
