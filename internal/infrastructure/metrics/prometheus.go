// Package metrics records client-side Prometheus metrics for backend calls,
// session transitions and receipt handling.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

const namespace = "campusfin"

// Recorder owns a private registry and the client's collectors.
// A nil *Recorder is valid and records nothing.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Recorder struct {
	mu sync.Mutex

	registry *prometheus.Registry

	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	sessionTransitions *prometheus.CounterVec
	staleResponses     *prometheus.CounterVec
	receiptItems       *prometheus.CounterVec
	receiptBytes       prometheus.Counter

	server *http.Server
}

// NewRecorder creates a recorder with all collectors registered
func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of backend API requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	r.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of backend API requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)
	r.sessionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Session status transitions by target status.",
		},
		[]string{"to"},
	)
	r.staleResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_responses_dropped_total",
			Help:      "Responses discarded because the session ended while they were in flight.",
		},
		[]string{"operation"},
	)
	r.receiptItems = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_items_total",
			Help:      "Receipt download or print items by outcome.",
		},
		[]string{"action", "result"},
	)
	r.receiptBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "receipt_bytes_total",
			Help:      "Total bytes of receipt documents fetched.",
		},
	)

	r.registry.MustRegister(
		r.requestsTotal,
		r.requestDuration,
		r.sessionTransitions,
		r.staleResponses,
		r.receiptItems,
		r.receiptBytes,
	)
	return r
}

// ObserveRequest records one backend request. status is 0 for transport failures.
func (r *Recorder) ObserveRequest(method, endpoint string, status int, elapsed time.Duration) {
	if r == nil {
		return
	}
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.requestsTotal.WithLabelValues(method, endpoint, label).Inc()
	r.requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

// SessionTransition records a session status change
func (r *Recorder) SessionTransition(to string) {
	if r == nil {
		return
	}
	r.sessionTransitions.WithLabelValues(to).Inc()
}

// StaleResponseDropped records a response ignored after session teardown
func (r *Recorder) StaleResponseDropped(operation string) {
	if r == nil {
		return
	}
	r.staleResponses.WithLabelValues(operation).Inc()
}

// ReceiptItem records the outcome of one receipt action
func (r *Recorder) ReceiptItem(action string, ok bool) {
	if r == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	r.receiptItems.WithLabelValues(action, result).Inc()
}

// ReceiptBytes adds to the fetched receipt byte counter
func (r *Recorder) ReceiptBytes(n int) {
	if r == nil {
		return
	}
	r.receiptBytes.Add(float64(n))
}

// Serve exposes /metrics on addr until Shutdown is called
func (r *Recorder) Serve(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))

	r.mu.Lock()
	r.server = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	srv := r.server
	r.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			_ = ln.Close()
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops the metrics server if it is running
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	srv := r.server
	r.server = nil
	r.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Gather collects all metric families (for testing and the CLI dump)
func (r *Recorder) Gather() ([]*dto.MetricFamily, error) {
	return r.registry.Gather()
}
