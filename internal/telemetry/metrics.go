package telemetry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/engine"
)

const namespace = "conveyor"

// Metrics — Prometheus метрики запусков. Реализует engine.Observer.
type Metrics struct {
	runsTotal    *prometheus.CounterVec
	runDuration  *prometheus.HistogramVec
	runsActive   *prometheus.GaugeVec
	nodesTotal   *prometheus.CounterVec
	nodeDuration *prometheus.HistogramVec
}

var _ engine.Observer = (*Metrics)(nil)

// NewMetrics создаёт метрики и регистрирует их в reg.
// Если reg == nil, используется prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_total",
			Help:      "Total pipeline runs by final status",
		}, []string{"pipeline", "status"}),

		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_run_duration_seconds",
			Help:      "Pipeline run wall-clock duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline"}),

		runsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_runs_active",
			Help:      "Pipeline runs in progress",
		}, []string{"pipeline"}),

		nodesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "node_executions_total",
			Help:      "Node invocation attempts by outcome",
		}, []string{"pipeline", "node", "status"}),

		nodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "node_duration_seconds",
			Help:      "Duration of completed node invocations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"pipeline", "node"}),
	}

	for _, c := range []prometheus.Collector{
		m.runsTotal, m.runDuration, m.runsActive, m.nodesTotal, m.nodeDuration,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// PipelineStarted увеличивает число активных запусков.
func (m *Metrics) PipelineStarted(_ context.Context, run engine.RunInfo) {
	m.runsActive.WithLabelValues(run.Pipeline).Inc()
}

// NodeStarted ничего не делает: попытка учитывается по завершении.
func (m *Metrics) NodeStarted(context.Context, engine.RunInfo, string) {}

// NodeFinished учитывает попытку выполнения узла.
func (m *Metrics) NodeFinished(_ context.Context, run engine.RunInfo, entry domain.LogEntry) {
	m.nodesTotal.WithLabelValues(run.Pipeline, entry.Node, entry.Status.String()).Inc()
	if entry.Status == domain.NodeStatusCompleted {
		m.nodeDuration.WithLabelValues(run.Pipeline, entry.Node).Observe(entry.ExecutionTime.Seconds())
	}
}

// PipelineFinished учитывает итог запуска.
func (m *Metrics) PipelineFinished(_ context.Context, result *domain.ExecutionResult) {
	m.runsActive.WithLabelValues(result.Pipeline).Dec()
	m.runsTotal.WithLabelValues(result.Pipeline, result.Status.String()).Inc()
	m.runDuration.WithLabelValues(result.Pipeline).Observe(result.TotalTime.Seconds())
}

// ServeMetrics отдаёт /metrics на addr, пока не отменён ctx.
func ServeMetrics(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics server started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
