package repo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema — таблицы истории запусков. Все операторы идемпотентны.
const schema = `
CREATE TABLE IF NOT EXISTS pipeline_runs (
	id            UUID PRIMARY KEY,
	pipeline      TEXT        NOT NULL,
	status        TEXT        NOT NULL,
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	error         TEXT,
	completed     INT         NOT NULL DEFAULT 0,
	failed        INT         NOT NULL DEFAULT 0,
	execution_log JSONB       NOT NULL DEFAULT '[]',
	final_context JSONB       NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS pipeline_runs_pipeline_started_idx
	ON pipeline_runs (pipeline, started_at DESC);

CREATE TABLE IF NOT EXISTS node_runs (
	run_id         UUID        NOT NULL REFERENCES pipeline_runs (id) ON DELETE CASCADE,
	position       INT         NOT NULL,
	name           TEXT        NOT NULL,
	status         TEXT        NOT NULL,
	started_at     TIMESTAMPTZ,
	finished_at    TIMESTAMPTZ,
	execution_ms   BIGINT      NOT NULL DEFAULT 0,
	error          TEXT,
	outputs        JSONB,
	PRIMARY KEY (run_id, name)
);
`

// EnsureSchema создаёт таблицы истории, если их ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
