package metrics

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tworjaga/cherenkov-engine/internal/correlate"
	"github.com/tworjaga/cherenkov-engine/internal/detect"
	"github.com/tworjaga/cherenkov-engine/internal/ingest"
)

// Collector implements prometheus.Collector, reading live gauges from the
// running pipeline, detector, and correlation engine at scrape time rather
// than pushing updates through the hot path.
type Collector struct {
	pool       *pgxpool.Pool
	pipeline   *ingest.Pipeline
	detector   *detect.Detector
	correlator *correlate.Engine

	dlqDepth        *prometheus.Desc
	dedupCacheSize  *prometheus.Desc
	circuitState    *prometheus.Desc
	activeSensors   *prometheus.Desc
	correlationBuf  *prometheus.Desc
	dbTotalConns    *prometheus.Desc
	dbAcquiredConns *prometheus.Desc
	dbIdleConns     *prometheus.Desc
}

// NewCollector creates a collector that reads live state at scrape time.
// Any argument may be nil if that component isn't wired in this process
// (e.g. a read-only query replica with no ingestion pipeline); the
// corresponding gauges report 0.
func NewCollector(pool *pgxpool.Pool, pipeline *ingest.Pipeline, detector *detect.Detector, correlator *correlate.Engine) *Collector {
	return &Collector{
		pool:       pool,
		pipeline:   pipeline,
		detector:   detector,
		correlator: correlator,

		dlqDepth: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "dlq_depth"),
			"Number of readings currently held in the dead-letter queue.",
			nil, nil,
		),
		dedupCacheSize: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "dedup_cache_size"),
			"Number of fingerprints currently held in the deduplication cache.",
			nil, nil,
		),
		circuitState: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "pipeline", "circuit_breaker_state"),
			"Current circuit breaker state (1 for the active state, labeled).",
			[]string{"state"}, nil,
		),
		activeSensors: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "detector", "active_sensors"),
			"Number of sensors with a live anomaly-detection accumulator.",
			nil, nil,
		),
		correlationBuf: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "correlator", "buffer_size"),
			"Number of events currently retained in the correlation buffer.",
			nil, nil,
		),
		dbTotalConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "total_conns"),
			"Total database pool connections.",
			nil, nil,
		),
		dbAcquiredConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "acquired_conns"),
			"Database pool connections currently in use.",
			nil, nil,
		),
		dbIdleConns: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "db_pool", "idle_conns"),
			"Database pool idle connections.",
			nil, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.dlqDepth
	ch <- c.dedupCacheSize
	ch <- c.circuitState
	ch <- c.activeSensors
	ch <- c.correlationBuf
	ch <- c.dbTotalConns
	ch <- c.dbAcquiredConns
	ch <- c.dbIdleConns
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.pipeline != nil {
		stats := c.pipeline.Stats()
		ch <- prometheus.MustNewConstMetric(c.dlqDepth, prometheus.GaugeValue, float64(stats.DLQDepth))
		ch <- prometheus.MustNewConstMetric(c.dedupCacheSize, prometheus.GaugeValue, float64(stats.DedupCacheSize))
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, 1, string(stats.CircuitState))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dlqDepth, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dedupCacheSize, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.circuitState, prometheus.GaugeValue, 0, "unknown")
	}

	if c.detector != nil {
		ch <- prometheus.MustNewConstMetric(c.activeSensors, prometheus.GaugeValue, float64(c.detector.ActiveSensorCount()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.activeSensors, prometheus.GaugeValue, 0)
	}

	if c.correlator != nil {
		ch <- prometheus.MustNewConstMetric(c.correlationBuf, prometheus.GaugeValue, float64(c.correlator.BufferSize()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.correlationBuf, prometheus.GaugeValue, 0)
	}

	if c.pool != nil {
		stat := c.pool.Stat()
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, float64(stat.TotalConns()))
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, float64(stat.AcquiredConns()))
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, float64(stat.IdleConns()))
	} else {
		ch <- prometheus.MustNewConstMetric(c.dbTotalConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbAcquiredConns, prometheus.GaugeValue, 0)
		ch <- prometheus.MustNewConstMetric(c.dbIdleConns, prometheus.GaugeValue, 0)
	}
}
