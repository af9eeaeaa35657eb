package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "jmlogpump"

// Metrics - счётчики насоса. Методы безопасны для nil-получателя,
// поэтому компоненты работают и без Prometheus.
type Metrics struct {
	filesProcessed *prometheus.CounterVec
	recordsParsed  *prometheus.CounterVec
	seriesPoints   *prometheus.CounterVec
	batchFlushes   *prometheus.CounterVec
}

// New регистрирует счётчики в reg
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		filesProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_processed_total",
			Help:      "Log files handled by the pump, by status.",
		}, []string{"status"}),
		recordsParsed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_parsed_total",
			Help:      "Records parsed from log files, by record type.",
		}, []string{"type"}),
		seriesPoints: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_points_total",
			Help:      "Aggregated series points produced, by mode.",
		}, []string{"mode"}),
		batchFlushes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_flush_total",
			Help:      "Batch flushes to the sink, by result.",
		}, []string{"result"}),
	}
}

func (m *Metrics) FileProcessed(status string) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordsParsed(recordType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.recordsParsed.WithLabelValues(recordType).Add(float64(n))
}

func (m *Metrics) SeriesPoints(mode string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.seriesPoints.WithLabelValues(mode).Add(float64(n))
}

func (m *Metrics) BatchFlushed(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.batchFlushes.WithLabelValues(result).Inc()
}

// Serve публикует /metrics на addr до отмены ctx
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if serr := server.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", serr)
			return
		}
		errCh <- nil
	}()
	logger.Info("Метрики доступны", zap.String("addr", ln.Addr().String()+"/metrics"))

	select {
	case <-ctx.Done():
	case err = <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Join(server.Shutdown(shutdownCtx), <-errCh)
}
