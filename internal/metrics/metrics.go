// Package metrics exposes Prometheus instruments for the scheduler, the
// sync coordinator and the remote client. They register on the default
// registry and are served by the daemon when metrics.addr is set.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	NotificationsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindme_notifications_delivered_total",
			Help: "Total number of notifications handed to the delivery callback",
		},
	)

	LocalDeleteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindme_local_delete_failures_total",
			Help: "Total number of failed local deletions after delivery",
		},
	)

	// operation: delete, delete_privileged, fetch, admin_status; result: ok, unauthorized, unavailable, ...
	RemoteCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindme_remote_calls_total",
			Help: "Total number of remote service calls by operation and result",
		},
		[]string{"operation", "result"},
	)

	RemoteCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remindme_remote_call_duration_seconds",
			Help:    "Remote service call duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
		},
		[]string{"operation"},
	)

	DuplicatesSuppressed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "remindme_duplicates_suppressed_total",
			Help: "Total number of remote notifications already tracked by the due queue",
		},
	)

	// result: ok, failed
	Reconciliations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "remindme_reconciliations_total",
			Help: "Total number of sync reconciliation attempts",
		},
		[]string{"result"},
	)

	QueueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "remindme_queue_size",
			Help: "Number of notifications currently held in the due queue",
		},
	)
)

// RecordDelivered counts one delivered notification.
func RecordDelivered() {
	NotificationsDelivered.Inc()
}

// RecordLocalDeleteFailure counts one failed post-delivery local delete.
func RecordLocalDeleteFailure() {
	LocalDeleteFailures.Inc()
}

// RecordRemoteCall counts a remote call and observes its latency.
func RecordRemoteCall(operation, result string, duration time.Duration) {
	RemoteCalls.WithLabelValues(operation, result).Inc()
	RemoteCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDuplicateSuppressed counts one deduplicated remote notification.
func RecordDuplicateSuppressed() {
	DuplicatesSuppressed.Inc()
}

// RecordReconciliation counts one reconciliation attempt.
func RecordReconciliation(result string) {
	Reconciliations.WithLabelValues(result).Inc()
}

// SetQueueSize publishes the current queue length.
func SetQueueSize(n int) {
	QueueSize.Set(float64(n))
}

// Serve exposes the default registry on addr under /metrics until ctx is
// cancelled.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving metrics on %s: %w", addr, err)
	}
	return nil
}
