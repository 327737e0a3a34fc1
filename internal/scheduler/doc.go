// Package scheduler повторно запускает pipeline по расписанию.
//
// Расписание (domain.Schedule) задаётся cron-выражением или интервалом.
// Scheduler периодически проверяет next_due_at и, когда время пришло,
// вызывает Job: обычно это Execute одного и того же pipeline.
//
// Структура:
//   - scheduler.go — основная логика Scheduler (Tick, Run)
//   - cron.go      — парсинг cron-выражений и вычисление следующего времени
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Schedule: &domain.Schedule{Pipeline: p.Name(), CronExpr: "*/5 * * * *"},
//	    Job: func(ctx context.Context, in map[string]any) (*domain.ExecutionResult, error) {
//	        return p.Execute(ctx, in)
//	    },
//	    Logger: logger,
//	})
//
//	err = sched.Run(ctx)
//
// Запуски выполняются последовательно: pipeline не допускает параллельных Execute.
package scheduler
