// Conveyor CLI — выполнение pipeline из файлов определения.
//
// Использование:
//
//	conveyor [--json] <command> [flags]
//
// Команды:
//
//	run       Однократный запуск pipeline
//	schedule  Повторный запуск по cron или интервалу
//	graph     Дерево pipeline
//	validate  Проверка файла определения
//	export    Экспорт топологии в JSON или YAML
//	history   История запусков (PostgreSQL)
//	events    События запусков (RabbitMQ)
//
// Окружение: LOG_LEVEL, LOG_FORMAT, DB_URL, RABBITMQ_URL, METRICS_ADDR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/cli"
	"github.com/shaiso/Conveyor/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "conveyor",
		Short:         "Run node-based data pipelines",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			telemetry.SetupLogger()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(
		cli.NewRunCmd(outputFn),
		cli.NewScheduleCmd(outputFn),
		cli.NewGraphCmd(outputFn),
		cli.NewValidateCmd(outputFn),
		cli.NewExportCmd(outputFn),
		cli.NewHistoryCmd(outputFn),
		cli.NewEventsCmd(outputFn),
	)

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}
