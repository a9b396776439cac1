// Package metrics exposes pipeline counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"novelhub/internal/progress"
)

type Metrics struct {
	registry *prometheus.Registry

	records     *prometheus.CounterVec
	stageRuns   *prometheus.CounterVec
	synced      *prometheus.CounterVec
	cursor      *prometheus.GaugeVec
	cursorReset prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novelhub",
			Subsystem: "migration",
			Name:      "records_total",
			Help:      "Records processed per migration stage and outcome.",
		}, []string{"stage", "outcome"}),
		stageRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novelhub",
			Subsystem: "migration",
			Name:      "stage_runs_total",
			Help:      "Completed migration stage runs.",
		}, []string{"stage"}),
		synced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "novelhub",
			Subsystem: "index_sync",
			Name:      "documents_total",
			Help:      "Documents upserted into the search index per entity type.",
		}, []string{"entity"}),
		cursor: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "novelhub",
			Subsystem: "index_sync",
			Name:      "cursor_unix_seconds",
			Help:      "Current sync watermark per entity type.",
		}, []string{"entity"}),
		cursorReset: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "novelhub",
			Subsystem: "index_sync",
			Name:      "cursor_resets_total",
			Help:      "Times the watermarks were reset because the index was empty.",
		}),
	}
	m.registry.MustRegister(
		m.records, m.stageRuns, m.synced, m.cursor, m.cursorReset,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe turns progress events into metric updates. Only terminal stage
// events count records so batch events are not double counted.
func (m *Metrics) Observe(e progress.Event) {
	switch e.Type {
	case progress.StageFinished:
		m.stageRuns.WithLabelValues(e.Stage).Inc()
		m.records.WithLabelValues(e.Stage, "migrated").Add(float64(e.Migrated))
		m.records.WithLabelValues(e.Stage, "skipped").Add(float64(e.Skipped))
		m.records.WithLabelValues(e.Stage, "failed").Add(float64(e.Failed))
	case progress.SyncPage:
		m.synced.WithLabelValues(e.Entity).Add(float64(e.Processed))
		m.cursor.WithLabelValues(e.Entity).Set(float64(e.Cursor) / 1e9)
	case progress.CursorReset:
		m.cursorReset.Inc()
	}
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
