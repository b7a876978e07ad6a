// Package metrics exposes a store's activity as Prometheus collectors:
// counters for the operations the engine and cache perform, and gauges for
// the point-in-time directory size reported by Stats. Nothing in the engine
// depends on this package — Metrics is wired in by the caller via optional
// setters, so a store used as a pure library pays nothing for it.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is a self-registered set of collectors for one open store. Each
// Metrics owns its own Registry rather than registering into the global
// default, so more than one store can be instrumented in the same process
// without name collisions.
type Metrics struct {
	Registry *prometheus.Registry

	Puts      prometheus.Counter
	Gets      prometheus.Counter
	Batches   prometheus.Counter
	Splits    prometheus.Counter
	CacheHits prometheus.Counter
	CacheMiss prometheus.Counter

	BucketCount prometheus.Gauge
	DataSize    prometheus.Gauge
	TableSize   prometheus.Gauge
}

// New builds and registers a fresh set of collectors under the hammersbald
// namespace.
func New() *Metrics {
	const ns = "hammersbald"
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Puts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "puts_total", Help: "Keyed and unkeyed Put calls.",
		}),
		Gets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "gets_total", Help: "Get and GetAt calls.",
		}),
		Batches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "batches_total", Help: "Completed Batch calls, including the implicit one in Shutdown.",
		}),
		Splits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "splits_total", Help: "Bucket splits performed by the hash directory.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_hits_total", Help: "LRU cache hits, if a Cache is in use.",
		}),
		CacheMiss: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns, Name: "cache_misses_total", Help: "LRU cache misses, if a Cache is in use.",
		}),
		BucketCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "bucket_count", Help: "Live hash-directory bucket count (2^L + S).",
		}),
		DataSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "data_log_bytes", Help: "Logical size of the data log in bytes.",
		}),
		TableSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns, Name: "table_bytes", Help: "Size of the table store file in bytes.",
		}),
	}
	m.Registry.MustRegister(
		m.Puts, m.Gets, m.Batches, m.Splits, m.CacheHits, m.CacheMiss,
		m.BucketCount, m.DataSize, m.TableSize,
	)
	return m
}

// SetGauges updates the three point-in-time gauges from an engine.Stats
// snapshot. Taking plain values instead of engine.Stats keeps this package
// free of an import on internal/engine.
func (m *Metrics) SetGauges(bucketCount uint64, dataSize, tableSize int64) {
	m.BucketCount.Set(float64(bucketCount))
	m.DataSize.Set(float64(dataSize))
	m.TableSize.Set(float64(tableSize))
}
