package report

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/TFMV/fim/internal/integrity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the Prometheus collectors exported by the monitor.
type Metrics struct {
	Changes      *prometheus.CounterVec
	FilesSkipped prometheus.Counter
	ScanDuration prometheus.Histogram
	LastScanTime prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fim",
			Name:      "changes_total",
			Help:      "Total number of detected file changes by type.",
		}, []string{"change_type"}),
		FilesSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "fim",
			Name:      "files_skipped_total",
			Help:      "Files left out of a scan because they could not be read.",
		}),
		ScanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "fim",
			Name:      "scan_duration_seconds",
			Help:      "Duration of full snapshot scans.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
		LastScanTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "fim",
			Name:      "last_scan_timestamp_seconds",
			Help:      "Unix time at which the last full scan finished.",
		}),
	}
	reg.MustRegister(m.Changes, m.FilesSkipped, m.ScanDuration, m.LastScanTime)
	for _, t := range []integrity.ChangeType{integrity.Created, integrity.Deleted, integrity.Modified, integrity.Moved} {
		m.Changes.WithLabelValues(string(t))
	}
	return m
}

// Report counts the change.
func (m *Metrics) Report(change integrity.Change) {
	m.Changes.WithLabelValues(string(change.Type)).Inc()
}

// ObserveScan records a completed full scan.
func (m *Metrics) ObserveScan(stats integrity.Stats) {
	m.FilesSkipped.Add(float64(stats.FilesSkipped))
	m.ScanDuration.Observe(stats.Elapsed.Seconds())
	m.LastScanTime.SetToCurrentTime()
}

// Serve exposes the registry on addr at /metrics until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}
