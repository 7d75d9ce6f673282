package zset

import "github.com/prometheus/client_golang/prometheus"

// metricsSet is the optional Prometheus instrumentation surface for a
// ZSet: LRU hit/miss counters, flush counts and batch sizes, and a
// cardinality gauge. A nil *metricsSet (the default when no
// prometheus.Registerer is supplied) makes every method a no-op, so
// the hot path never branches on "is metrics enabled".
type metricsSet struct {
	lruHits      prometheus.Counter
	lruMisses    prometheus.Counter
	flushes      prometheus.Counter
	flushedBatch prometheus.Histogram
	cardinality  prometheus.Gauge
}

func newMetricsSet(reg prometheus.Registerer, name string) *metricsSet {
	if reg == nil {
		return nil
	}
	labels := prometheus.Labels{"zset": name}
	m := &metricsSet{
		lruHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zset",
			Name:        "lru_hits_total",
			Help:        "Number of dict lookups served from the LRU write buffer.",
			ConstLabels: labels,
		}),
		lruMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zset",
			Name:        "lru_misses_total",
			Help:        "Number of dict lookups that missed the LRU write buffer.",
			ConstLabels: labels,
		}),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "zset",
			Name:        "flushes_total",
			Help:        "Number of write-batch flushes to the persistent store.",
			ConstLabels: labels,
		}),
		flushedBatch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "zset",
			Name:        "flush_batch_size",
			Help:        "Number of records written per flush.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(1, 2, 12),
		}),
		cardinality: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "zset",
			Name:        "cardinality",
			Help:        "Current number of members in the ZSet.",
			ConstLabels: labels,
		}),
	}
	reg.MustRegister(m.lruHits, m.lruMisses, m.flushes, m.flushedBatch, m.cardinality)
	return m
}

func (m *metricsSet) incLRUHit() {
	if m == nil {
		return
	}
	m.lruHits.Inc()
}

func (m *metricsSet) incLRUMiss() {
	if m == nil {
		return
	}
	m.lruMisses.Inc()
}

func (m *metricsSet) observeFlush(batchSize int) {
	if m == nil || batchSize == 0 {
		return
	}
	m.flushes.Inc()
	m.flushedBatch.Observe(float64(batchSize))
}

func (m *metricsSet) setCardinality(card uint32) {
	if m == nil {
		return
	}
	m.cardinality.Set(float64(card))
}
