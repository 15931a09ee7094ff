// Package metrics exposes ledger counters to Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const namespace = "pool_ledger"

// Metrics implements the ledger recorder and the metadata observer.
type Metrics struct {
	EventsApplied   *prometheus.CounterVec
	EventsSkipped   *prometheus.CounterVec
	EventsFailed    *prometheus.CounterVec
	MetadataLookups *prometheus.CounterVec
	Flushes         prometheus.Counter
	FlushedEntities prometheus.Counter
}

// New registers the ledger metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EventsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_applied_total",
			Help:      "Events applied to the ledger by event kind",
		}, []string{"event"}),
		EventsSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_skipped_total",
			Help:      "Events skipped by event kind and reason",
		}, []string{"event", "reason"}),
		EventsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "events_failed_total",
			Help:      "Events rejected with an error by event kind",
		}, []string{"event"}),
		MetadataLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "metadata",
			Name:      "lookups_total",
			Help:      "Token metadata lookups by answering source",
		}, []string{"source"}),
		Flushes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flushes_total",
			Help:      "Store flushes committed",
		}),
		FlushedEntities: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "flushed_entities_total",
			Help:      "Entities written by store flushes",
		}),
	}
}

func (m *Metrics) EventApplied(event string) {
	m.EventsApplied.WithLabelValues(event).Inc()
}

func (m *Metrics) EventSkipped(event, reason string) {
	m.EventsSkipped.WithLabelValues(event, reason).Inc()
}

func (m *Metrics) EventFailed(event string) {
	m.EventsFailed.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveMetadata(source string) {
	m.MetadataLookups.WithLabelValues(source).Inc()
}

// ObserveFlush records one committed flush of n entities.
func (m *Metrics) ObserveFlush(n int) {
	m.Flushes.Inc()
	m.FlushedEntities.Add(float64(n))
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes gatherer on addr until ctx is done.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
