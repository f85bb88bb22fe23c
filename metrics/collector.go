// Package metrics exposes recording sessions as Prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/nugget/region"
	"github.com/sarchlab/nugget/storage"
)

// Collector is an akita hook that turns region transitions into Prometheus
// metrics. Attach it to a segmenter or recorder with AcceptHook and register
// it with a prometheus.Registerer.
type Collector struct {
	regionsOpened prometheus.Counter
	regionsClosed prometheus.Counter
	instructions  prometheus.Counter
	executions    prometheus.Counter
	regionSize    prometheus.Histogram
	lastRegion    prometheus.Gauge
}

// NewCollector creates a Collector with metric names under namespace.
// threshold is used to scale the region size histogram buckets.
func NewCollector(namespace string, threshold uint64) *Collector {
	buckets := []float64{1}
	if threshold > 0 {
		t := float64(threshold)
		buckets = []float64{t / 4, t / 2, t * 3 / 4, t, t * 1.01, t * 1.1, t * 2}
	}

	return &Collector{
		regionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_opened_total",
			Help:      "Number of regions opened.",
		}),
		regionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "regions_closed_total",
			Help:      "Number of regions closed.",
		}),
		instructions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "instructions_total",
			Help:      "Instructions accounted into closed regions.",
		}),
		executions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "block_executions_total",
			Help:      "Basic-block executions accounted into closed regions.",
		}),
		regionSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "region_instructions",
			Help:      "Instruction count of each closed region.",
			Buckets:   buckets,
		}),
		lastRegion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_closed_region",
			Help:      "Index of the most recently closed region.",
		}),
	}
}

// Func implements sim.Hook.
func (c *Collector) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case region.HookPosRegionOpened:
		c.regionsOpened.Inc()
	case region.HookPosRegionClosed:
		info, ok := ctx.Detail.(region.RegionInfo)
		if !ok {
			return
		}
		c.regionsClosed.Inc()
		c.instructions.Add(float64(info.TotalInstructions))
		c.regionSize.Observe(float64(info.TotalInstructions))
		c.lastRegion.Set(float64(info.Index))
		if r, ok := ctx.Item.(*storage.Region); ok {
			c.executions.Add(float64(r.Executions()))
		}
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.regionsOpened.Describe(ch)
	c.regionsClosed.Describe(ch)
	c.instructions.Describe(ch)
	c.executions.Describe(ch)
	c.regionSize.Describe(ch)
	c.lastRegion.Describe(ch)
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.regionsOpened.Collect(ch)
	c.regionsClosed.Collect(ch)
	c.instructions.Collect(ch)
	c.executions.Collect(ch)
	c.regionSize.Collect(ch)
	c.lastRegion.Collect(ch)
}
