// Package metrics exposes Prometheus collectors fed by bus events and by
// the catalog.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	eventbus "github.com/hanpama/bookgraph/internal/eventbus"
	events "github.com/hanpama/bookgraph/internal/events"
)

const namespace = "bookgraph"

// Metrics holds the collectors updated from the event bus.
type Metrics struct {
	Requests          *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	BatchSize         *prometheus.HistogramVec
	BatchErrors       *prometheus.CounterVec
	RecordsAdded      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14), // 0.5ms to ~4s
		}, []string{"method"}),
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "graphql_operations_total",
			Help:      "GraphQL operations by type and result (ok, error, rejected).",
		}, []string{"type", "result"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "graphql_operation_duration_seconds",
			Help:      "GraphQL operation latency, validation included.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}, []string{"type"}),
		BatchSize: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "resolver_batch_size",
			Help:      "Sources per batch resolver call.",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 500},
		}, []string{"field"}),
		BatchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolver_batch_errors_total",
			Help:      "Failed batch resolver calls.",
		}, []string{"field"}),
		RecordsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_records_added_total",
			Help:      "Records appended to the catalog by kind.",
		}, []string{"kind"}),
	}
}

// Subscribe updates m from events on the global bus.
func (m *Metrics) Subscribe() (unsubscribe func()) {
	unsubs := []func(){
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			m.Requests.WithLabelValues(e.Request.Method, strconv.Itoa(e.Status)).Inc()
			m.RequestDuration.WithLabelValues(e.Request.Method).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GraphQLFinish) {
			typ := e.OperationType
			if typ == "" {
				typ = "unknown"
			}
			result := "ok"
			switch {
			case e.Rejected:
				result = "rejected"
			case len(e.Errors) > 0:
				result = "error"
			}
			m.Operations.WithLabelValues(typ, result).Inc()
			m.OperationDuration.WithLabelValues(typ).Observe(e.Duration.Seconds())
		}),
		eventbus.Subscribe(func(_ context.Context, e events.ResolverBatch) {
			field := e.ObjectType + "." + e.Field
			m.BatchSize.WithLabelValues(field).Observe(float64(e.Size))
			if e.Err != nil {
				m.BatchErrors.WithLabelValues(field).Inc()
			}
		}),
		eventbus.Subscribe(func(_ context.Context, e events.RecordAdded) {
			m.RecordsAdded.WithLabelValues(e.Kind).Inc()
		}),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Sizer reports the number of records a catalog holds.
type Sizer interface {
	Len() (authors, books int)
}

// RegisterCatalog registers gauges reading the current size of c.
func RegisterCatalog(reg prometheus.Registerer, c Sizer) error {
	authors := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_authors",
		Help:      "Authors currently in the catalog.",
	}, func() float64 {
		n, _ := c.Len()
		return float64(n)
	})
	books := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "catalog_books",
		Help:      "Books currently in the catalog.",
	}, func() float64 {
		_, n := c.Len()
		return float64(n)
	})
	for _, col := range []prometheus.Collector{authors, books} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
