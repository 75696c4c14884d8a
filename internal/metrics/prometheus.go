package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GaugeFunc はスクレイプ時に読み出すプールの状態
type GaugeFunc func() (live, pending int)

// Collector は Metrics を Prometheus に公開する
type Collector struct {
	m     *Metrics
	gauge GaugeFunc

	submitted    *prometheus.Desc
	executed     *prometheus.Desc
	panicked     *prometheus.Desc
	dropped      *prometheus.Desc
	joinFailures *prometheus.Desc
	inFlight     *prometheus.Desc
	liveWorkers  *prometheus.Desc
	pending      *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// NewCollector は Collector を作成する。gauge は nil でもよい
func NewCollector(namespace string, m *Metrics, gauge GaugeFunc) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, nil)
	}
	return &Collector{
		m:            m,
		gauge:        gauge,
		submitted:    desc("tasks_submitted_total", "Tasks handed to Submit."),
		executed:     desc("tasks_executed_total", "Tasks that ran to completion."),
		panicked:     desc("tasks_panicked_total", "Tasks that panicked and stopped their worker."),
		dropped:      desc("tasks_dropped_total", "Tasks accepted but never executed."),
		joinFailures: desc("join_failures_total", "Workers that reported an error when joined."),
		inFlight:     desc("tasks_in_flight", "Tasks currently executing."),
		liveWorkers:  desc("workers_live", "Workers still running their loop."),
		pending:      desc("queue_pending", "Entries waiting in the task queue."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.submitted
	ch <- c.executed
	ch <- c.panicked
	ch <- c.dropped
	ch <- c.joinFailures
	ch <- c.inFlight
	ch <- c.liveWorkers
	ch <- c.pending
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(c.m.Submitted()))
	ch <- prometheus.MustNewConstMetric(c.executed, prometheus.CounterValue, float64(c.m.Executed()))
	ch <- prometheus.MustNewConstMetric(c.panicked, prometheus.CounterValue, float64(c.m.Panicked()))
	ch <- prometheus.MustNewConstMetric(c.dropped, prometheus.CounterValue, float64(c.m.Dropped()))
	ch <- prometheus.MustNewConstMetric(c.joinFailures, prometheus.CounterValue, float64(c.m.JoinFailures()))
	ch <- prometheus.MustNewConstMetric(c.inFlight, prometheus.GaugeValue, float64(c.m.InFlight()))

	var live, pending int
	if c.gauge != nil {
		live, pending = c.gauge()
	}
	ch <- prometheus.MustNewConstMetric(c.liveWorkers, prometheus.GaugeValue, float64(live))
	ch <- prometheus.MustNewConstMetric(c.pending, prometheus.GaugeValue, float64(pending))
}
