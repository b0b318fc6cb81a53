// Package exporter publishes profiler state over HTTP: Prometheus metrics
// and a small JSON API.
package exporter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wesleyorama2/perfcore/internal/profiler/metrics"
	"github.com/wesleyorama2/perfcore/internal/profiler/report"
	"github.com/wesleyorama2/perfcore/internal/profiler/sampler"
)

// Source is what the exporter reads from a profiler.
type Source interface {
	report.Source
	Method(name string) (metrics.Snapshot, bool)
	Sampling() bool
}

const namespace = "perfcore"

// Collector is a prometheus.Collector that reads the profiler on every
// scrape. Nothing is cached between scrapes.
type Collector struct {
	src Source

	invocations *prometheus.Desc
	totalNanos  *prometheus.Desc
	maxNanos    *prometheus.Desc
	minNanos    *prometheus.Desc
	avgNanos    *prometheus.Desc

	heapUsed    *prometheus.Desc
	heapMax     *prometheus.Desc
	nonHeapUsed *prometheus.Desc
	nonHeapMax  *prometheus.Desc

	systemLoad *prometheus.Desc
	processCPU *prometheus.Desc
	processors *prometheus.Desc

	goroutines     *prometheus.Desc
	goroutinesPeak *prometheus.Desc
	threadsCreated *prometheus.Desc

	ticks    *prometheus.Desc
	skipped  *prometheus.Desc
	failures *prometheus.Desc
}

// NewCollector creates a collector for src.
func NewCollector(src Source) *Collector {
	method := []string{"method"}
	desc := func(name, help string, labels []string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}

	return &Collector{
		src: src,

		invocations: desc("method_invocations_total", "Number of recorded executions per method.", method),
		totalNanos:  desc("method_duration_nanoseconds_total", "Total execution time per method.", method),
		maxNanos:    desc("method_duration_max_nanoseconds", "Longest recorded execution per method.", method),
		minNanos:    desc("method_duration_min_nanoseconds", "Shortest recorded execution per method.", method),
		avgNanos:    desc("method_duration_average_nanoseconds", "Mean execution time per method.", method),

		heapUsed:    desc("heap_used_bytes", "Heap bytes in use at the last sample.", nil),
		heapMax:     desc("heap_max_bytes", "Heap limit at the last sample.", nil),
		nonHeapUsed: desc("nonheap_used_bytes", "Runtime-internal bytes in use at the last sample.", nil),
		nonHeapMax:  desc("nonheap_max_bytes", "Runtime-internal bytes obtained from the OS at the last sample.", nil),

		systemLoad: desc("system_load_average", "One minute system load average at the last sample.", nil),
		processCPU: desc("process_cpu_load", "Process CPU load in [0,1] at the last sample.", nil),
		processors: desc("available_processors", "Processors available to the process.", nil),

		goroutines:     desc("goroutines", "Live goroutines at the last sample.", nil),
		goroutinesPeak: desc("goroutines_peak", "Highest goroutine count seen by the sampler.", nil),
		threadsCreated: desc("os_threads_created_total", "OS threads created by the runtime.", nil),

		ticks:    desc("sampler_ticks_total", "Sampling ticks that ran.", nil),
		skipped:  desc("sampler_skipped_ticks_total", "Sampling ticks dropped because one was still running.", nil),
		failures: desc("sampler_failures_total", "Family samples that returned an error.", nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.invocations, c.totalNanos, c.maxNanos, c.minNanos, c.avgNanos,
		c.heapUsed, c.heapMax, c.nonHeapUsed, c.nonHeapMax,
		c.systemLoad, c.processCPU, c.processors,
		c.goroutines, c.goroutinesPeak, c.threadsCreated,
		c.ticks, c.skipped, c.failures,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for name, s := range c.src.SnapshotAllMethods() {
		// Label values must be valid UTF-8. A bad method name is reported
		// as a scrape error instead of aborting the whole collection.
		first, err := prometheus.NewConstMetric(c.invocations, prometheus.CounterValue, float64(s.Count), name)
		if err != nil {
			ch <- prometheus.NewInvalidMetric(c.invocations, err)
			continue
		}
		ch <- first
		ch <- prometheus.MustNewConstMetric(c.totalNanos, prometheus.CounterValue, float64(s.Total), name)
		ch <- prometheus.MustNewConstMetric(c.maxNanos, prometheus.GaugeValue, float64(s.Max), name)
		ch <- prometheus.MustNewConstMetric(c.minNanos, prometheus.GaugeValue, float64(s.Min), name)
		ch <- prometheus.MustNewConstMetric(c.avgNanos, prometheus.GaugeValue, float64(s.Average), name)
	}

	if m, ok := c.src.LatestMemory(); ok {
		ch <- prometheus.MustNewConstMetric(c.heapUsed, prometheus.GaugeValue, float64(m.HeapUsed))
		ch <- prometheus.MustNewConstMetric(c.heapMax, prometheus.GaugeValue, float64(m.HeapMax))
		ch <- prometheus.MustNewConstMetric(c.nonHeapUsed, prometheus.GaugeValue, float64(m.NonHeapUsed))
		ch <- prometheus.MustNewConstMetric(c.nonHeapMax, prometheus.GaugeValue, float64(m.NonHeapMax))
	}

	if cpu, ok := c.src.LatestCPU(); ok {
		if cpu.SystemLoadAverage != sampler.LoadUnavailable {
			ch <- prometheus.MustNewConstMetric(c.systemLoad, prometheus.GaugeValue, cpu.SystemLoadAverage)
		}
		if cpu.ProcessCPULoad != sampler.LoadUnavailable {
			ch <- prometheus.MustNewConstMetric(c.processCPU, prometheus.GaugeValue, cpu.ProcessCPULoad)
		}
		ch <- prometheus.MustNewConstMetric(c.processors, prometheus.GaugeValue, float64(cpu.AvailableProcessors))
	}

	if t, ok := c.src.LatestThreads(); ok {
		ch <- prometheus.MustNewConstMetric(c.goroutines, prometheus.GaugeValue, float64(t.CurrentCount))
		ch <- prometheus.MustNewConstMetric(c.goroutinesPeak, prometheus.GaugeValue, float64(t.PeakCount))
		ch <- prometheus.MustNewConstMetric(c.threadsCreated, prometheus.CounterValue, float64(t.TotalStartedCount))
	}

	stats := c.src.SchedulerStats()
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(stats.Ticks))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(stats.Skipped))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(stats.Failures))
}
