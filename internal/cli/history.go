package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/repo"
)

// NewHistoryCmd создаёт группу команд для чтения истории запусков.
func NewHistoryCmd(outputFn func() *Output) *cobra.Command {
	var dbURL string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse saved pipeline runs",
	}
	cmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL DSN (default $DB_URL)")

	poolFn := func(ctx context.Context) (*pgxpool.Pool, error) {
		return repo.NewPool(ctx, dbURL)
	}

	cmd.AddCommand(
		newHistoryListCmd(poolFn, outputFn),
		newHistoryShowCmd(poolFn, outputFn),
	)

	return cmd
}

func newHistoryListCmd(poolFn func(context.Context) (*pgxpool.Pool, error), outputFn func() *Output) *cobra.Command {
	var pipeline string
	var status string
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			filter := repo.RunFilter{
				Pipeline: pipeline,
				Limit:    limit,
				Offset:   offset,
			}
			if status != "" {
				filter.Status = domain.PipelineStatus(strings.ToUpper(status))
			}

			pool, err := poolFn(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			runs, err := repo.NewRunRepo(pool).List(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out.Print(runHeaders(), runRows(runs), runs)
			return nil
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "Filter by pipeline name")
	cmd.Flags().StringVar(&status, "status", "", "Filter by status (COMPLETED, FAILED)")
	cmd.Flags().IntVar(&limit, "limit", repo.DefaultListLimit, "Maximum number of results")
	cmd.Flags().IntVar(&offset, "offset", 0, "Skip this many runs")

	return cmd
}

func newHistoryShowCmd(poolFn func(context.Context) (*pgxpool.Pool, error), outputFn func() *Output) *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show a run with its nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			pool, err := poolFn(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()

			rec, err := repo.NewRunRepo(pool).GetByID(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("run %s: %w", id, err)
			}

			if out.JSONMode() {
				out.JSON(rec)
				return nil
			}

			out.Table(runHeaders(), runRows([]domain.RunRecord{*rec}))
			if rec.Error != "" {
				out.Text("\nError: " + rec.Error)
			}
			out.Text("")
			out.Table(nodeHeaders(), nodeRows(rec.Nodes))
			return nil
		},
	}
}

func runHeaders() []string {
	return []string{"ID", "PIPELINE", "STATUS", "STARTED", "DURATION", "COMPLETED", "FAILED"}
}

func runRows(runs []domain.RunRecord) [][]string {
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.ID.String(),
			r.Pipeline,
			r.Status.String(),
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			formatDuration(r.Duration()),
			strconv.Itoa(r.Completed),
			strconv.Itoa(r.Failed),
		}
	}
	return rows
}

func nodeHeaders() []string {
	return []string{"NODE", "STATUS", "TIME", "ERROR"}
}

func nodeRows(nodes []domain.NodeRecord) [][]string {
	rows := make([][]string, len(nodes))
	for i, n := range nodes {
		elapsed := "-"
		if n.Status.IsTerminal() {
			elapsed = formatDuration(n.ExecutionTime)
		}
		rows[i] = []string{n.Name, n.Status.String(), elapsed, n.Error}
	}
	return rows
}
