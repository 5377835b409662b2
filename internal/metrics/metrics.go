package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Source outcome labels.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// AnalyzerMetrics holds all Prometheus metrics for a processing run. A nil
// *AnalyzerMetrics is valid and records nothing.
type AnalyzerMetrics struct {
	SourcesTotal      *prometheus.CounterVec
	RecordsTotal      *prometheus.CounterVec
	TransactionsTotal *prometheus.CounterVec
	SourceDuration    prometheus.Histogram
	MergesInFlight    prometheus.Gauge
}

// NewAnalyzerMetrics initializes the metrics and registers them with reg.
func NewAnalyzerMetrics(reg prometheus.Registerer) *AnalyzerMetrics {
	factory := promauto.With(reg)
	return &AnalyzerMetrics{
		SourcesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bbox_analyzer",
			Subsystem: "engine",
			Name:      "sources_total",
			Help:      "Total number of processed sources by status.",
		}, []string{"status"}), // status: ok, failed
		RecordsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bbox_analyzer",
			Subsystem: "extract",
			Name:      "records_total",
			Help:      "Total number of log records by routing outcome.",
		}, []string{"route"}), // route: event, catalog, dropped
		TransactionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bbox_analyzer",
			Subsystem: "reconstruct",
			Name:      "transactions_total",
			Help:      "Total number of closed transactions by outcome.",
		}, []string{"outcome"}), // outcome: emitted, aborted, unstarted
		SourceDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bbox_analyzer",
			Subsystem: "engine",
			Name:      "source_duration_seconds",
			Help:      "Time spent reading and processing one source.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		MergesInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "bbox_analyzer",
			Subsystem: "engine",
			Name:      "merges_in_flight",
			Help:      "Number of merges currently committing (0 or 1).",
		}),
	}
}

// ObserveSource records one finished source.
func (m *AnalyzerMetrics) ObserveSource(status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.SourcesTotal.WithLabelValues(status).Inc()
	m.SourceDuration.Observe(elapsed.Seconds())
}

// AddRecords records the routing counts of one source.
func (m *AnalyzerMetrics) AddRecords(routed, catalogOnly, dropped int) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues("event").Add(float64(routed))
	m.RecordsTotal.WithLabelValues("catalog").Add(float64(catalogOnly))
	m.RecordsTotal.WithLabelValues("dropped").Add(float64(dropped))
}

// AddTransactions records the closing counts of one source.
func (m *AnalyzerMetrics) AddTransactions(emitted, aborted, unstarted int) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues("emitted").Add(float64(emitted))
	m.TransactionsTotal.WithLabelValues("aborted").Add(float64(aborted))
	m.TransactionsTotal.WithLabelValues("unstarted").Add(float64(unstarted))
}

// MergeStarted and MergeDone bracket a commit.
func (m *AnalyzerMetrics) MergeStarted() {
	if m != nil {
		m.MergesInFlight.Inc()
	}
}

func (m *AnalyzerMetrics) MergeDone() {
	if m != nil {
		m.MergesInFlight.Dec()
	}
}

// Serve exposes g on addr under /metrics until ctx is cancelled.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
