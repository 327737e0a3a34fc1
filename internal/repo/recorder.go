package repo

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

// RunSaver — хранилище, в которое Recorder пишет итог запуска. Реализуется RunRepo.
type RunSaver interface {
	Save(ctx context.Context, rec *domain.RunRecord) error
}

var _ RunSaver = (*RunRepo)(nil)

// Recorder — наблюдатель, сохраняющий итог каждого запуска в историю.
//
// Ошибка сохранения не влияет на запуск, она только логируется.
// Последняя ошибка доступна через Err, чтобы CLI мог сообщить о ней.
type Recorder struct {
	engine.NopObserver

	saver   RunSaver
	logger  *slog.Logger
	timeout time.Duration
	lastErr error
}

// NewRecorder создаёт Recorder поверх saver.
func NewRecorder(saver RunSaver, logger *slog.Logger) *Recorder {
	return &Recorder{
		saver:   saver,
		logger:  logger,
		timeout: 10 * time.Second,
	}
}

// PipelineFinished сохраняет запуск.
func (r *Recorder) PipelineFinished(ctx context.Context, result *domain.ExecutionResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	rec := domain.NewRunRecord(result)
	if err := r.saver.Save(ctx, rec); err != nil {
		r.lastErr = err
		r.logger.Error("failed to save run",
			"run_id", rec.ID,
			"pipeline", rec.Pipeline,
			"error", err,
		)
		return
	}

	r.lastErr = nil
	r.logger.Debug("run saved", "run_id", rec.ID, "pipeline", rec.Pipeline)
}

// Err возвращает ошибку последнего сохранения.
func (r *Recorder) Err() error {
	return r.lastErr
}
