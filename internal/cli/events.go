package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/mq"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// NewEventsCmd создаёт команду чтения событий запусков из RabbitMQ.
func NewEventsCmd(outputFn func() *Output) *cobra.Command {
	var amqpURL string
	var nodes bool
	var count int

	cmd := &cobra.Command{
		Use:   "events",
		Short: "Follow published run events",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()
			logger := telemetry.WithComponent(slog.Default(), "events")

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			conn, err := mq.Dial(ctx, mq.ConnectionConfig{URL: amqpURL, Name: "conveyor-events"}, logger)
			if err != nil {
				return fmt.Errorf("rabbitmq: %w", err)
			}
			defer conn.Close()

			if err := mq.SetupTopology(ctx, conn); err != nil {
				return fmt.Errorf("rabbitmq topology: %w", err)
			}

			queue := mq.QueueRunsFinished
			if nodes {
				queue = mq.QueueNodeEvents
			}

			seen := 0
			consumer := mq.NewConsumer(conn, logger, mq.ConsumerConfig{
				Queue: queue,
				Handler: func(_ context.Context, ev mq.Event) error {
					printEvent(out, ev)

					seen++
					if count > 0 && seen >= count {
						cancel()
					}
					return nil
				},
			})

			if err := consumer.Run(ctx); err != nil {
				return err
			}

			stats := consumer.Stats()
			logger.Info("stopped following events",
				"handled", stats.Handled,
				"rejected", stats.Rejected,
				"connected", conn.IsConnected(),
			)
			if stats.Rejected > 0 {
				out.Warn(fmt.Sprintf("%d undecodable event(s) moved to %s", stats.Rejected, mq.QueueDLQEvents))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&amqpURL, "amqp-url", "", "RabbitMQ URL (default $RABBITMQ_URL)")
	cmd.Flags().BoolVar(&nodes, "nodes", false, "Follow node events instead of finished runs")
	cmd.Flags().IntVar(&count, "count", 0, "Exit after N events (0 = until interrupted)")

	return cmd
}

// formatEvent — строка события для текстового вывода.
func formatEvent(ev mq.Event) string {
	text := fmt.Sprintf("%s  %-18s %s %s", ev.Time.Local().Format("15:04:05.000"), ev.Type, ev.Pipeline, ev.RunID)
	if ev.Node != "" {
		text += " node=" + ev.Node
	}
	if ev.Status != "" {
		text += " status=" + ev.Status
	}
	if ev.Duration > 0 {
		text += " time=" + formatDuration(ev.Duration)
	}
	if ev.Error != "" {
		text += " error=" + ev.Error
	}
	return text
}

func printEvent(out *Output, ev mq.Event) {
	if out.JSONMode() {
		out.JSON(ev)
		return
	}
	out.Text(formatEvent(ev))
}
