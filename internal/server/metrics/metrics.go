// Package metrics provides Prometheus metrics for the records server.
package metrics

import (
	"context"
	"net/http"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
)

// Metrics groups the server collectors. Each instance registers on its own
// registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	// RecordsListed counts records returned by List, by table.
	RecordsListed *prometheus.CounterVec

	// RecordsPushed counts records accepted by Push, by table.
	RecordsPushed *prometheus.CounterVec

	// RPCDuration tracks unary call latency by method and status code.
	RPCDuration *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		RecordsListed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldkeeper",
				Subsystem: "records",
				Name:      "listed_total",
				Help:      "Total number of records returned by list calls",
			},
			[]string{"table"},
		),
		RecordsPushed: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "fieldkeeper",
				Subsystem: "records",
				Name:      "pushed_total",
				Help:      "Total number of records stored by push calls",
			},
			[]string{"table"},
		),
		RPCDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "fieldkeeper",
				Subsystem: "rpc",
				Name:      "duration_seconds",
				Help:      "Duration of unary gRPC calls in seconds",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "code"},
		),
	}
}

// Registry exposes the underlying registry for gathering.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// UnaryServerInterceptor observes the duration of every unary call.
func (m *Metrics) UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		m.RPCDuration.
			WithLabelValues(path.Base(info.FullMethod), status.Code(err).String()).
			Observe(time.Since(start).Seconds())
		return resp, err
	}
}
