package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	SnapshotSaves *prometheus.CounterVec
	SnapshotBytes prometheus.Gauge
	Restores      *prometheus.CounterVec
	Generations   *prometheus.CounterVec
	QuotaExceeded prometheus.Gauge
}

// New registers all collectors. Passing the result as nil to consumers is allowed.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		SnapshotSaves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lernguide_snapshot_saves_total",
				Help: "Snapshot save attempts by result",
			},
			[]string{"result"},
		),
		SnapshotBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lernguide_snapshot_bytes",
				Help: "Size of the last serialized snapshot",
			},
		),
		Restores: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lernguide_restores_total",
				Help: "Session restores by source and result",
			},
			[]string{"source", "result"},
		),
		Generations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lernguide_generation_requests_total",
				Help: "Generation requests by task and result",
			},
			[]string{"task", "result"},
		),
		QuotaExceeded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lernguide_storage_quota_exceeded",
				Help: "1 while the last save was rejected for size",
			},
		),
	}
	reg.MustRegister(
		m.SnapshotSaves,
		m.SnapshotBytes,
		m.Restores,
		m.Generations,
		m.QuotaExceeded,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveSave(result string, size int) {
	if m == nil {
		return
	}
	m.SnapshotSaves.WithLabelValues(result).Inc()
	if result == "ok" {
		m.SnapshotBytes.Set(float64(size))
	}
}

func (m *Metrics) SetQuotaExceeded(exceeded bool) {
	if m == nil {
		return
	}
	if exceeded {
		m.QuotaExceeded.Set(1)
		return
	}
	m.QuotaExceeded.Set(0)
}

func (m *Metrics) ObserveRestore(source, result string) {
	if m == nil {
		return
	}
	m.Restores.WithLabelValues(source, result).Inc()
}

func (m *Metrics) ObserveGeneration(task, result string) {
	if m == nil {
		return
	}
	m.Generations.WithLabelValues(task, result).Inc()
}
