package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/engine"
	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/repo"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// ErrRunFailed — запуск завершился со статусом FAILED.
var ErrRunFailed = errors.New("pipeline run failed")

// runFlags — флаги, общие для run и schedule.
type runFlags struct {
	inputs          []string
	continueOnError bool
	timeout         time.Duration

	store       bool
	dbURL       string
	publish        bool
	nodeEvents     bool
	publishTimeout time.Duration
	amqpURL        string
	metricsAddr    string
}

func (f *runFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringSliceVar(&f.inputs, "input", nil, "Initial context values as KEY=VALUE (repeatable)")
	flags.BoolVar(&f.continueOnError, "continue-on-error", false, "Keep visiting successors after a node fails")
	flags.DurationVar(&f.timeout, "timeout", 0, "Cancel the run after this duration (0 = no limit)")

	flags.BoolVar(&f.store, "store", false, "Save the run to the history database")
	flags.StringVar(&f.dbURL, "db-url", "", "PostgreSQL DSN (default $DB_URL)")
	flags.BoolVar(&f.publish, "publish", false, "Publish run events to RabbitMQ")
	flags.BoolVar(&f.nodeEvents, "node-events", true, "Publish node events as well as run events")
	flags.DurationVar(&f.publishTimeout, "publish-timeout", 5*time.Second, "Timeout for publishing one event")
	flags.StringVar(&f.amqpURL, "amqp-url", "", "RabbitMQ URL (default $RABBITMQ_URL)")
	flags.StringVar(&f.metricsAddr, "metrics-addr", os.Getenv("METRICS_ADDR"), "Serve Prometheus metrics on this address")
}

func (f *runFlags) executeOptions() []engine.ExecuteOption {
	return []engine.ExecuteOption{engine.WithStopOnError(!f.continueOnError)}
}

// attachments — наблюдатели, подключённые к pipeline, и ресурсы, которые нужно закрыть.
type attachments struct {
	observers []engine.Observer
	recorder  *repo.Recorder
	closers   []func()
}

func (a *attachments) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// attach поднимает метрики, историю и публикацию событий согласно флагам.
func (f *runFlags) attach(ctx context.Context, logger *slog.Logger) (*attachments, error) {
	a := &attachments{}

	if f.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		metrics, err := telemetry.NewMetrics(reg)
		if err != nil {
			return nil, fmt.Errorf("metrics: %w", err)
		}
		a.observers = append(a.observers, metrics)

		srvCtx, cancel := context.WithCancel(ctx)
		a.closers = append(a.closers, cancel)
		go func() {
			if err := telemetry.ServeMetrics(srvCtx, f.metricsAddr, reg, logger); err != nil {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	if f.store {
		pool, err := repo.NewPool(ctx, f.dbURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("history database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if err := repo.EnsureSchema(ctx, pool); err != nil {
			a.Close()
			return nil, err
		}

		a.recorder = repo.NewRecorder(repo.NewRunRepo(pool), logger)
		a.observers = append(a.observers, a.recorder)
	}

	if f.publish {
		conn, err := mq.Dial(ctx, mq.ConnectionConfig{URL: f.amqpURL, Name: "conveyor-run"}, logger)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		a.closers = append(a.closers, func() { conn.Close() })

		if err := mq.SetupTopology(ctx, conn); err != nil {
			a.Close()
			return nil, fmt.Errorf("rabbitmq topology: %w", err)
		}

		pub := mq.NewPublisher(conn, logger)
		a.observers = append(a.observers, mq.NewEventPublisher(pub, logger,
			mq.WithNodeEvents(f.nodeEvents),
			mq.WithPublishTimeout(f.publishTimeout),
		))
	}

	return a, nil
}

// NewRunCmd создаёт команду запуска pipeline из файла определения.
func NewRunCmd(outputFn func() *Output) *cobra.Command {
	var flags runFlags

	cmd := &cobra.Command{
		Use:   "run FILE",
		Short: "Execute a pipeline definition once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := slog.Default()

			inputs, err := parseInputs(flags.inputs)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if flags.timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, flags.timeout)
				defer cancel()
			}

			att, err := flags.attach(ctx, logger)
			if err != nil {
				return err
			}
			defer att.Close()

			p, _, err := loadPipeline(args[0], logger, att.observers...)
			if err != nil {
				return err
			}

			result, err := p.Execute(ctx, inputs, flags.executeOptions()...)
			if err != nil {
				return err
			}

			out.Summary(result)

			if att.recorder != nil {
				if err := att.recorder.Err(); err != nil {
					out.Warn(fmt.Sprintf("run was not saved: %v", err))
				} else {
					out.Success(fmt.Sprintf("Run saved: %s", result.RunID))
				}
			}

			if !result.Succeeded() {
				return ErrRunFailed
			}
			return nil
		},
	}

	flags.register(cmd)

	return cmd
}
