// Package metrics collects task execution statistics for the worker pool.
//
// Metrics counts submitted, executed, panicked and dropped tasks, tracks how
// many are in flight, and samples execution latency for average and P99
// figures. Collector exposes the same values to Prometheus.
//
// # Basic Usage
//
//	m := metrics.New()
//	m.RecordSubmitted()
//	m.TaskStarted()
//	// ... run the task ...
//	m.TaskFinished(time.Since(start), false)
//
//	snap := m.Snapshot()
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewCollector("poolhttpd", m, nil))
//
// # Thread Safety
//
// Counters are atomic; the latency sample ring is guarded by a RWMutex.
package metrics
