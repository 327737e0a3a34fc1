package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Conveyor/internal/domain"
)

// pgUniqueViolation — код ошибки PostgreSQL при нарушении уникальности.
const pgUniqueViolation = "23505"

// RunRepo — репозиторий истории запусков.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

// Save сохраняет запуск и его узлы в одной транзакции.
func (r *RunRepo) Save(ctx context.Context, rec *domain.RunRecord) error {
	logJSON, err := json.Marshal(rec.ExecutionLog)
	if err != nil {
		return fmt.Errorf("marshal execution log: %w", err)
	}
	contextJSON, err := json.Marshal(rec.FinalContext)
	if err != nil {
		return fmt.Errorf("marshal final context: %w", err)
	}

	err = pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		query := `
			INSERT INTO pipeline_runs (id, pipeline, status, started_at, finished_at, error,
			                           completed, failed, execution_log, final_context)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`
		_, err := tx.Exec(ctx, query,
			rec.ID,
			rec.Pipeline,
			rec.Status.String(),
			rec.StartedAt,
			rec.FinishedAt,
			nullString(rec.Error),
			rec.Completed,
			rec.Failed,
			logJSON,
			contextJSON,
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		batch := &pgx.Batch{}
		for _, node := range rec.Nodes {
			outputsJSON, err := json.Marshal(node.Outputs)
			if err != nil {
				return fmt.Errorf("marshal outputs of %s: %w", node.Name, err)
			}
			batch.Queue(`
				INSERT INTO node_runs (run_id, position, name, status, started_at, finished_at,
				                       execution_ms, error, outputs)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			`,
				rec.ID,
				node.Position,
				node.Name,
				node.Status.String(),
				node.StartedAt,
				node.FinishedAt,
				node.ExecutionTime.Milliseconds(),
				nullString(node.Error),
				outputsJSON,
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("insert nodes: %w", err)
		}
		return nil
	})

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("run %s: %w", rec.ID, ErrAlreadyExists)
	}
	return err
}

// GetByID возвращает запуск вместе с узлами.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.RunRecord, error) {
	query := `
		SELECT id, pipeline, status, started_at, finished_at, error, completed, failed,
		       execution_log, final_context
		FROM pipeline_runs
		WHERE id = $1
	`

	var rec domain.RunRecord
	var status string
	var runError *string
	var logJSON, contextJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&rec.ID,
		&rec.Pipeline,
		&status,
		&rec.StartedAt,
		&rec.FinishedAt,
		&runError,
		&rec.Completed,
		&rec.Failed,
		&logJSON,
		&contextJSON,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	rec.Status = domain.ParsePipelineStatus(status)
	if runError != nil {
		rec.Error = *runError
	}
	if err := json.Unmarshal(logJSON, &rec.ExecutionLog); err != nil {
		return nil, fmt.Errorf("unmarshal execution log: %w", err)
	}
	if err := json.Unmarshal(contextJSON, &rec.FinalContext); err != nil {
		return nil, fmt.Errorf("unmarshal final context: %w", err)
	}

	nodes, err := r.listNodes(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Nodes = nodes

	return &rec, nil
}

// List возвращает запуски без узлов, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.RunRecord, error) {
	filter = filter.normalize()

	query := `
		SELECT id, pipeline, status, started_at, finished_at, error, completed, failed
		FROM pipeline_runs
		WHERE ($1::text IS NULL OR pipeline = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullString(filter.Pipeline),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var rec domain.RunRecord
		var status string
		var runError *string

		if err := rows.Scan(
			&rec.ID,
			&rec.Pipeline,
			&status,
			&rec.StartedAt,
			&rec.FinishedAt,
			&runError,
			&rec.Completed,
			&rec.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}

		rec.Status = domain.ParsePipelineStatus(status)
		if runError != nil {
			rec.Error = *runError
		}
		runs = append(runs, rec)
	}
	return runs, rows.Err()
}

func (r *RunRepo) listNodes(ctx context.Context, runID uuid.UUID) ([]domain.NodeRecord, error) {
	query := `
		SELECT position, name, status, started_at, finished_at, execution_ms, error, outputs
		FROM node_runs
		WHERE run_id = $1
		ORDER BY position
	`
	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []domain.NodeRecord
	for rows.Next() {
		var node domain.NodeRecord
		var status string
		var executionMs int64
		var nodeError *string
		var outputsJSON []byte

		if err := rows.Scan(
			&node.Position,
			&node.Name,
			&status,
			&node.StartedAt,
			&node.FinishedAt,
			&executionMs,
			&nodeError,
			&outputsJSON,
		); err != nil {
			return nil, fmt.Errorf("scan node: %w", err)
		}

		node.Status = domain.NodeStatus(status)
		node.ExecutionTime = time.Duration(executionMs) * time.Millisecond
		if nodeError != nil {
			node.Error = *nodeError
		}
		if outputsJSON != nil {
			if err := json.Unmarshal(outputsJSON, &node.Outputs); err != nil {
				return nil, fmt.Errorf("unmarshal outputs of %s: %w", node.Name, err)
			}
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

// --- Helpers ---

// DefaultListLimit — размер страницы по умолчанию.
const DefaultListLimit = 20

// RunFilter — параметры фильтрации истории.
type RunFilter struct {
	Pipeline string
	Status   domain.PipelineStatus
	Limit    int
	Offset   int
}

func (f RunFilter) normalize() RunFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
