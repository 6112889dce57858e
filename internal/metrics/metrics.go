package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"trendboard/internal/models"
)

const namespace = "trendboard"

// Source request outcomes
const (
	SourceOK    = "ok"
	SourceRetry = "retry"
	SourceError = "error"
)

// Cache lookup results
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

var (
	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_runs_total",
		Help:      "Sync runs by trigger and final status",
	}, []string{"trigger", "status"})

	SyncRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sync_run_duration_seconds",
		Help:      "Wall time of a sync run",
		Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	IndicatorOutcomesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sync_indicator_outcomes_total",
		Help:      "Per-indicator sync outcomes by provenance and status",
	}, []string{"provenance", "status"})

	SourceRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_requests_total",
		Help:      "External source request attempts by outcome",
	}, []string{"source", "outcome"})

	CacheLookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by result",
	}, []string{"result"})
)

var (
	observationsDesc = prometheus.NewDesc(
		namespace+"_observations",
		"Stored observations by indicator and provenance of the last write",
		[]string{"indicator", "provenance"},
		nil,
	)
	revisionsDesc = prometheus.NewDesc(
		namespace+"_observation_revisions",
		"Sum of revision counters by indicator and provenance",
		[]string{"indicator", "provenance"},
		nil,
	)
)

// StatsReader reads aggregate observation counts from the store.
type StatsReader interface {
	GetObservationStats(ctx context.Context) ([]models.ObservationStat, error)
}

// ObservationCollector is a custom Prometheus collector that reads observation
// counts from the database on each scrape.
type ObservationCollector struct {
	reader  StatsReader
	timeout time.Duration
}

// NewObservationCollector creates a collector backed by reader.
func NewObservationCollector(reader StatsReader) *ObservationCollector {
	return &ObservationCollector{reader: reader, timeout: 5 * time.Second}
}

// Describe sends the metric descriptors to the channel.
func (c *ObservationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- observationsDesc
	ch <- revisionsDesc
}

// Collect queries the database and emits one gauge pair per indicator and provenance.
func (c *ObservationCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	stats, err := c.reader.GetObservationStats(ctx)
	if err != nil {
		slog.Error("failed to collect observation metrics", "error", err)
		return
	}
	for _, s := range stats {
		ch <- prometheus.MustNewConstMetric(observationsDesc, prometheus.GaugeValue, float64(s.Count), s.IndicatorID, s.Provenance)
		ch <- prometheus.MustNewConstMetric(revisionsDesc, prometheus.GaugeValue, float64(s.Revisions), s.IndicatorID, s.Provenance)
	}
}

var initOnce sync.Once

// Init registers the custom collector. Must be called once at startup.
func Init(reader StatsReader) {
	initOnce.Do(func() {
		prometheus.MustRegister(NewObservationCollector(reader))
	})
}

// RecordSourceRequest counts one external request attempt.
func RecordSourceRequest(source, outcome string) {
	SourceRequestsTotal.WithLabelValues(source, outcome).Inc()
}

// RecordCacheLookup counts one cache lookup.
func RecordCacheLookup(result string) {
	CacheLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSyncRun counts a finished run and its duration.
func RecordSyncRun(trigger, status string, d time.Duration) {
	SyncRunsTotal.WithLabelValues(trigger, status).Inc()
	SyncRunDuration.Observe(d.Seconds())
}

// RecordIndicatorOutcome counts one indicator's result within a run.
func RecordIndicatorOutcome(provenance, status string) {
	IndicatorOutcomesTotal.WithLabelValues(provenance, status).Inc()
}
