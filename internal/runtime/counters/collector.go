package counters

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/protowamp/internal/runtime/stats"
)

// Collector exports a statistics tree to Prometheus. Each valid counter becomes
// one sample labelled with its tree path and counter name; call durations are
// exported as summaries.
type Collector struct {
	tree      *Tree
	counter   *prometheus.Desc
	durations *prometheus.Desc
}

// NewCollector returns a collector for tree.
func NewCollector(tree *Tree) *Collector {
	return &Collector{
		tree: tree,
		counter: prometheus.NewDesc(
			prometheus.BuildFQName("protowamp", "stats", "counter_total"),
			"Protocol statistics counters by tree path.",
			[]string{"path", "counter"}, nil,
		),
		durations: prometheus.NewDesc(
			prometheus.BuildFQName("protowamp", "stats", "call_duration_seconds"),
			"Call durations by tree path.",
			[]string{"path"}, nil,
		),
	}
}

// Register adds the collector to registerer. Registering twice is not an error.
func (c *Collector) Register(registerer prometheus.Registerer) error {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	if err := registerer.Register(c); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			return err
		}
	}
	return nil
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.counter
	ch <- c.durations
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	root := c.tree.Root()
	if root == nil {
		return
	}
	stats.Walk(root, func(path []string, node stats.Node) {
		label := strings.Join(path, ".")
		for name, value := range stats.Counters(node) {
			ch <- prometheus.MustNewConstMetric(c.counter, prometheus.CounterValue, float64(value), label, name)
		}
		timed, ok := node.(stats.Timed)
		if !ok {
			return
		}
		d := timed.Durations()
		if d.Count == 0 {
			return
		}
		ch <- prometheus.MustNewConstSummary(c.durations, uint64(d.Count), float64(d.Sum)/1e9, nil, label)
	})
}
