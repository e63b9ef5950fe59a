package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Engine-level Prometheus metrics. All metrics carry a "cache" label whose
// value is the group passed to WithMetricsGroup, so multiple engine instances
// can be distinguished in dashboards.
var (
	// HitsTotal counts successful lookups per group.
	HitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits.",
		},
		[]string{"cache"},
	)

	// MissesTotal counts failed lookups per group, including lazy expiries.
	MissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses.",
		},
		[]string{"cache"},
	)

	// EvictionsTotal counts entries evicted to satisfy the byte budget.
	EvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_evictions_total",
			Help: "Total number of entries evicted from the cache.",
		},
		[]string{"cache"},
	)
)

func init() {
	prometheus.MustRegister(
		HitsTotal,
		MissesTotal,
		EvictionsTotal,
	)
}

// statsCollector lazily reports entry count and byte size for one cache
// group by snapshotting the engine at scrape time. Lazy collection avoids
// stale gauges: lazy TTL expiry means counts change without any metric
// event firing.
type statsCollector struct {
	entriesDesc *prometheus.Desc
	sizeDesc    *prometheus.Desc
	statsFunc   func() Stats
}

func (c *statsCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.entriesDesc
	ch <- c.sizeDesc
}

func (c *statsCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.statsFunc()
	ch <- prometheus.MustNewConstMetric(c.entriesDesc, prometheus.GaugeValue, float64(s.Entries))
	ch <- prometheus.MustNewConstMetric(c.sizeDesc, prometheus.GaugeValue, float64(s.Size))
}

var (
	statsCollectorMu sync.Mutex
	statsCollectors  = make(map[string]*statsCollector)
	// statsReg is the registerer used for stats collectors. Exposed as a
	// variable so tests can substitute an isolated registry.
	statsReg prometheus.Registerer = prometheus.DefaultRegisterer
)

// registerStatsCollector registers a per-group collector reading the cache
// stats at scrape time. An existing collector for the same group is
// replaced, which keeps re-construction of a group's cache safe.
func registerStatsCollector(group string, statsFunc func() Stats) {
	labels := prometheus.Labels{"cache": group}
	c := &statsCollector{
		entriesDesc: prometheus.NewDesc(
			"cache_entries",
			"Current number of entries in the cache.",
			nil, labels,
		),
		sizeDesc: prometheus.NewDesc(
			"cache_size_bytes",
			"Current aggregate size of cached values in bytes.",
			nil, labels,
		),
		statsFunc: statsFunc,
	}

	statsCollectorMu.Lock()
	defer statsCollectorMu.Unlock()

	if old, ok := statsCollectors[group]; ok {
		statsReg.Unregister(old)
	}
	statsCollectors[group] = c
	_ = statsReg.Register(c)
}

// unregisterStatsCollector removes the collector for the given group.
func unregisterStatsCollector(group string) {
	statsCollectorMu.Lock()
	defer statsCollectorMu.Unlock()

	if c, ok := statsCollectors[group]; ok {
		statsReg.Unregister(c)
		delete(statsCollectors, group)
	}
}
