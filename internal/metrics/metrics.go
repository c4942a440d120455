// Package metrics exposes ping run results as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hamed0406/tileping/internal/domain"
)

var statuses = []domain.Status{
	domain.StatusHealthy,
	domain.StatusPartial,
	domain.StatusFailed,
	domain.StatusError,
}

// Metrics records every run it observes. Each instance has its own registry.
type Metrics struct {
	Registry *prometheus.Registry

	runs            prometheus.Counter
	runDuration     prometheus.Histogram
	endpoints       *prometheus.GaugeVec
	endpointStatus  *prometheus.GaugeVec
	endpointLatency *prometheus.GaugeVec
	tiles           *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		runs: f.NewCounter(prometheus.CounterOpts{
			Name: "tileping_runs_total",
			Help: "Completed ping runs",
		}),
		runDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tileping_run_duration_seconds",
			Help:    "Wall time of a ping run",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		endpoints: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tileping_endpoints",
			Help: "Endpoints per status in the latest run",
		}, []string{"status"}),
		endpointStatus: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tileping_endpoint_status",
			Help: "1 for the status each endpoint had in the latest run",
		}, []string{"endpoint", "status"}),
		endpointLatency: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tileping_endpoint_avg_response_seconds",
			Help: "Average successful tile response time in the latest run",
		}, []string{"endpoint"}),
		tiles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tileping_tiles_total",
			Help: "Tile requests by outcome",
		}, []string{"result"}),
	}
}

// Observe implements scheduler.Observer.
func (m *Metrics) Observe(_ context.Context, run domain.Run) error {
	m.runs.Inc()
	if !run.StartedAt.IsZero() && run.FinishedAt.After(run.StartedAt) {
		m.runDuration.Observe(run.FinishedAt.Sub(run.StartedAt).Seconds())
	}

	// endpoints that disappeared from the webconf tree must not linger
	m.endpointStatus.Reset()
	m.endpointLatency.Reset()

	counts := make(map[domain.Status]int, len(statuses))
	for _, r := range run.Results {
		key := r.Key()
		counts[r.Status]++
		m.endpointStatus.WithLabelValues(key, string(r.Status)).Set(1)
		if avg, ok := r.AvgLatency(); ok {
			m.endpointLatency.WithLabelValues(key).Set(avg.Seconds())
		}
		m.tiles.WithLabelValues("successful").Add(float64(r.SuccessfulTiles))
		m.tiles.WithLabelValues("failed").Add(float64(r.FailedTiles))
	}
	for _, s := range statuses {
		m.endpoints.WithLabelValues(string(s)).Set(float64(counts[s]))
	}
	return nil
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
