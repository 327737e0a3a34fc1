package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/scheduler"
)

// NewScheduleCmd создаёт команду повторного запуска pipeline по расписанию.
func NewScheduleCmd(outputFn func() *Output) *cobra.Command {
	var flags runFlags
	var cronExpr string
	var every time.Duration
	var timezone string
	var count int

	cmd := &cobra.Command{
		Use:   "schedule FILE",
		Short: "Execute a pipeline repeatedly on a cron expression or interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := slog.Default()

			if cronExpr == "" && every == 0 {
				return errors.New("one of --cron or --every is required")
			}

			inputs, err := parseInputs(flags.inputs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			att, err := flags.attach(ctx, logger)
			if err != nil {
				return err
			}
			defer att.Close()

			p, _, err := loadPipeline(args[0], logger, att.observers...)
			if err != nil {
				return err
			}
			if err := p.Validate(); err != nil {
				return err
			}

			sched := &domain.Schedule{
				Pipeline: p.Name(),
				CronExpr: cronExpr,
				Interval: every,
				Timezone: timezone,
				Inputs:   inputs,
			}

			s, err := scheduler.New(scheduler.Config{
				Schedule: sched,
				Job:      scheduledJob(p, flags, out),
				Logger:   logger,
				MaxRuns:  count,
			})
			if err != nil {
				return err
			}

			if err := s.Run(ctx); err != nil {
				return fmt.Errorf("scheduler: %w", err)
			}

			final := s.Schedule()
			out.Success(fmt.Sprintf("Scheduler stopped after %d runs", final.Runs))
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&cronExpr, "cron", "", `Cron expression, e.g. "*/5 * * * *" or "@hourly"`)
	cmd.Flags().DurationVar(&every, "every", 0, "Interval between runs, e.g. 30s")
	cmd.Flags().StringVar(&timezone, "timezone", "UTC", "Timezone for cron expressions")
	cmd.Flags().IntVar(&count, "count", 0, "Stop after N runs (0 = until interrupted)")
	cmd.MarkFlagsMutuallyExclusive("cron", "every")

	return cmd
}

// scheduledJob выполняет pipeline и печатает итог каждого запуска.
func scheduledJob(p *engine.Pipeline, flags runFlags, out *Output) scheduler.Job {
	return func(ctx context.Context, inputs map[string]any) (*domain.ExecutionResult, error) {
		if flags.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, flags.timeout)
			defer cancel()
		}

		result, err := p.Execute(ctx, inputs, flags.executeOptions()...)
		if err != nil {
			return nil, err
		}
		out.Summary(result)
		return result, nil
	}
}
