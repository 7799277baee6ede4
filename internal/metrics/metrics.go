// Package metrics exposes synchronizer counters in the Prometheus format.
// A nil *Recorder is valid and records nothing.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cristianoliveira/dashsync/internal/domain"
)

const namespace = "dashsync"

// Recorder holds the instruments of one process.
type Recorder struct {
	registry          *prometheus.Registry
	connects          *prometheus.CounterVec
	transportFailures *prometheus.CounterVec
	polls             *prometheus.CounterVec
	pollFailures      *prometheus.CounterVec
	staleDropped      *prometheus.CounterVec
	rollbacks         *prometheus.CounterVec
	refreshTriggers   *prometheus.CounterVec
	connectionStatus  *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		}, labels)
	}
	r := &Recorder{
		registry:          prometheus.NewRegistry(),
		connects:          counter("stream_connects_total", "Push channel opens.", "stream"),
		transportFailures: counter("stream_transport_failures_total", "Push channel dial or read failures.", "stream"),
		polls:             counter("polls_total", "Fallback poll fetches.", "stream"),
		pollFailures:      counter("poll_failures_total", "Fallback poll fetches that failed.", "stream"),
		staleDropped:      counter("stale_payloads_dropped_total", "Payloads discarded because a newer one was applied.", "stream"),
		rollbacks:         counter("optimistic_rollbacks_total", "Optimistic mutations rolled back after a server failure.", "stream", "operation"),
		refreshTriggers:   counter("refresh_triggers_total", "Refresh bus triggers.", "reason"),
		connectionStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_status",
			Help:      "1 for the current connection status of each stream.",
		}, []string{"stream", "status"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.connects,
		r.transportFailures,
		r.polls,
		r.pollFailures,
		r.staleDropped,
		r.rollbacks,
		r.refreshTriggers,
		r.connectionStatus,
	)
	return r
}

// Registry returns the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Connected counts a push channel open.
func (r *Recorder) Connected(stream string) {
	if r == nil {
		return
	}
	r.connects.WithLabelValues(stream).Inc()
}

// TransportFailure counts a push channel failure.
func (r *Recorder) TransportFailure(stream string) {
	if r == nil {
		return
	}
	r.transportFailures.WithLabelValues(stream).Inc()
}

// Poll counts a fallback poll and whether it failed.
func (r *Recorder) Poll(stream string, err error) {
	if r == nil {
		return
	}
	r.polls.WithLabelValues(stream).Inc()
	if err != nil {
		r.pollFailures.WithLabelValues(stream).Inc()
	}
}

// StaleDropped counts a payload discarded by sequence ordering.
func (r *Recorder) StaleDropped(stream string) {
	if r == nil {
		return
	}
	r.staleDropped.WithLabelValues(stream).Inc()
}

// Rollback counts an optimistic mutation undone after a failure.
func (r *Recorder) Rollback(stream, operation string) {
	if r == nil {
		return
	}
	r.rollbacks.WithLabelValues(stream, operation).Inc()
}

// RefreshTriggered counts a refresh bus trigger.
func (r *Recorder) RefreshTriggered(reason string) {
	if r == nil {
		return
	}
	r.refreshTriggers.WithLabelValues(reason).Inc()
}

// SetStatus sets the status gauge of stream to status.
func (r *Recorder) SetStatus(stream string, status domain.ConnectionStatus) {
	if r == nil {
		return
	}
	for _, s := range domain.AllStatuses {
		value := 0.0
		if s == status {
			value = 1
		}
		r.connectionStatus.WithLabelValues(stream, s.String()).Set(value)
	}
}

// Handler serves the registry in the exposition format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	}
}
