package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hupe1980/cspace"
)

const namespace = "cspace"

// StatsSource is anything reporting allocator statistics, typically a
// *cspace.Space.
type StatsSource interface {
	ID() string
	Stats() cspace.Stats
}

// Collector is a prometheus.Collector exporting the statistics of a set of
// spaces, labelled by space ID.
type Collector struct {
	mu      sync.RWMutex
	sources []StatsSource

	allocs        *prometheus.Desc
	frees         *prometheus.Desc
	live          *prometheus.Desc
	fresh         *prometheus.Desc
	refills       *prometheus.Desc
	steals        *prometheus.Desc
	outOfMemory   *prometheus.Desc
	idle          *prometheus.Desc
	chunks        *prometheus.Desc
	bytesReserved *prometheus.Desc
	bytesUsed     *prometheus.Desc
	usage         *prometheus.Desc
	budgetLimit   *prometheus.Desc
	budgetUsed    *prometheus.Desc
	budgetPeak    *prometheus.Desc
	budgetDenied  *prometheus.Desc
}

// NewCollector creates a collector for the given spaces.
func NewCollector(sources ...StatsSource) *Collector {
	labels := []string{"space"}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "allocator", name), help, labels, nil)
	}
	return &Collector{
		sources:       sources,
		allocs:        desc("allocs_total", "States handed out by the allocator."),
		frees:         desc("frees_total", "States returned to the allocator."),
		live:          desc("live_states", "States currently allocated."),
		fresh:         desc("fresh_payloads_total", "Payloads carved from the arena."),
		refills:       desc("refills_total", "Shard refills served by the arena."),
		steals:        desc("steals_total", "Shard refills served by a neighbouring shard."),
		outOfMemory:   desc("out_of_memory_total", "Allocations refused for lack of memory."),
		idle:          desc("idle_payloads", "Payloads waiting on free lists."),
		chunks:        desc("arena_chunks", "Off-heap chunks currently mapped."),
		bytesReserved: desc("arena_reserved_bytes", "Off-heap bytes reserved from the OS."),
		bytesUsed:     desc("arena_used_bytes", "Off-heap bytes carved into payloads."),
		usage:         desc("arena_usage_percent", "Carved bytes in percent of reserved bytes."),
		budgetLimit:   desc("budget_limit_bytes", "Memory budget limit, 0 if unbounded."),
		budgetUsed:    desc("budget_used_bytes", "Bytes drawn from the memory budget."),
		budgetPeak:    desc("budget_peak_bytes", "Highest budget usage observed."),
		budgetDenied:  desc("budget_denied_total", "Chunk reservations refused by the budget."),
	}
}

// Add starts exporting src.
func (c *Collector) Add(src StatsSource) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.allocs
	ch <- c.frees
	ch <- c.live
	ch <- c.fresh
	ch <- c.refills
	ch <- c.steals
	ch <- c.outOfMemory
	ch <- c.idle
	ch <- c.chunks
	ch <- c.bytesReserved
	ch <- c.bytesUsed
	ch <- c.usage
	ch <- c.budgetLimit
	ch <- c.budgetUsed
	ch <- c.budgetPeak
	ch <- c.budgetDenied
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.mu.RLock()
	sources := append([]StatsSource(nil), c.sources...)
	c.mu.RUnlock()

	for _, src := range sources {
		id := src.ID()
		st := src.Stats()
		ch <- prometheus.MustNewConstMetric(c.allocs, prometheus.CounterValue, float64(st.Allocs), id)
		ch <- prometheus.MustNewConstMetric(c.frees, prometheus.CounterValue, float64(st.Frees), id)
		ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(st.Live), id)
		ch <- prometheus.MustNewConstMetric(c.fresh, prometheus.CounterValue, float64(st.FreshAllocs), id)
		ch <- prometheus.MustNewConstMetric(c.refills, prometheus.CounterValue, float64(st.Refills), id)
		ch <- prometheus.MustNewConstMetric(c.steals, prometheus.CounterValue, float64(st.Steals), id)
		ch <- prometheus.MustNewConstMetric(c.outOfMemory, prometheus.CounterValue, float64(st.OutOfMemory), id)
		ch <- prometheus.MustNewConstMetric(c.idle, prometheus.GaugeValue, float64(st.Idle), id)
		ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.GaugeValue, float64(st.Chunks), id)
		ch <- prometheus.MustNewConstMetric(c.bytesReserved, prometheus.GaugeValue, float64(st.BytesReserved), id)
		ch <- prometheus.MustNewConstMetric(c.bytesUsed, prometheus.GaugeValue, float64(st.BytesUsed), id)
		ch <- prometheus.MustNewConstMetric(c.usage, prometheus.GaugeValue, st.ArenaUsage, id)
		ch <- prometheus.MustNewConstMetric(c.budgetLimit, prometheus.GaugeValue, float64(st.BudgetLimit), id)
		ch <- prometheus.MustNewConstMetric(c.budgetUsed, prometheus.GaugeValue, float64(st.BudgetUsed), id)
		ch <- prometheus.MustNewConstMetric(c.budgetPeak, prometheus.GaugeValue, float64(st.BudgetPeak), id)
		ch <- prometheus.MustNewConstMetric(c.budgetDenied, prometheus.CounterValue, float64(st.BudgetDenied), id)
	}
}
