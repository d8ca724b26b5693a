// Package metrics exposes a Governor's diagnostic Snapshot as Prometheus
// metrics. Values are collected on demand at scrape time rather than pushed
// continuously, matching the read-only, point-in-time nature of
// governor.Governor.Snapshot — and guaranteeing every metric in one scrape
// comes from the same Snapshot call, not several racing reads.
package metrics

import (
	"github.com/Andrej220/adaptivelimiter/governor"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "adaptivelimiter"

// Collector adapts a Governor's Snapshot into Prometheus metrics. Register
// it with a prometheus.Registerer; it never mutates or reads back into the
// Governor's AIMD decision.
type Collector struct {
	g *governor.Governor

	capacity     *prometheus.Desc
	available    *prometheus.Desc
	running      *prometheus.Desc
	overloadCnt  *prometheus.Desc
	finishedCnt  *prometheus.Desc
	liveTasks    *prometheus.Desc
	increaseStep *prometheus.Desc
	adjustments  *prometheus.Desc
}

// NewCollector returns a Collector reporting g's Snapshot.
func NewCollector(g *governor.Governor) *Collector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, nil)
	}
	return &Collector{
		g:            g,
		capacity:     desc("capacity", "Current admitted-concurrency capacity."),
		available:    desc("available", "Instantaneously grantable permits; may be negative right after a capacity cut."),
		running:      desc("running", "Tasks currently holding a permit."),
		overloadCnt:  desc("overload_in_window", "Overload completions observed in the current AIMD window."),
		finishedCnt:  desc("finished_in_window", "Completions observed in the current AIMD window."),
		liveTasks:    desc("live_tasks", "Tasks submitted but not yet settled."),
		increaseStep: desc("increase_step", "Additive-increase step that will apply on the next calm window."),
		adjustments:  desc("adjustments_total", "Total AIMD recomputations performed since construction."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.available
	ch <- c.running
	ch <- c.overloadCnt
	ch <- c.finishedCnt
	ch <- c.liveTasks
	ch <- c.increaseStep
	ch <- c.adjustments
}

// Collect implements prometheus.Collector, reading exactly one Snapshot so
// every reported value is mutually consistent.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	s := c.g.Snapshot()
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.available, prometheus.GaugeValue, float64(s.Available))
	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(s.RunningCount))
	ch <- prometheus.MustNewConstMetric(c.overloadCnt, prometheus.GaugeValue, float64(s.OverloadCount))
	ch <- prometheus.MustNewConstMetric(c.finishedCnt, prometheus.GaugeValue, float64(s.FinishedCount))
	ch <- prometheus.MustNewConstMetric(c.liveTasks, prometheus.GaugeValue, float64(s.LiveTasks))
	ch <- prometheus.MustNewConstMetric(c.increaseStep, prometheus.GaugeValue, float64(s.IncreaseStep))
	ch <- prometheus.MustNewConstMetric(c.adjustments, prometheus.CounterValue, float64(s.Adjustments))
}
