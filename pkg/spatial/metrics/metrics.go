// Package metrics exports spatial map activity as prometheus metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/zeusync/gridkit/pkg/spatial"
)

const namespace = "gridkit"

// Collector holds the per-map counters. Register it once on a registry and
// attach maps to it with Instrument.
type Collector struct {
	added   *prometheus.CounterVec
	removed *prometheus.CounterVec
	moved   *prometheus.CounterVec
	items   *prometheus.GaugeVec
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector() *Collector {
	labels := []string{"map"}
	return &Collector{
		added: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_added_total",
			Help:      "Items added to the map.",
		}, labels),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_removed_total",
			Help:      "Items removed from the map.",
		}, labels),
		moved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_moved_total",
			Help:      "Item moves within the map.",
		}, labels),
		items: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items",
			Help:      "Items currently stored in the map.",
		}, labels),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.added.Describe(ch)
	c.removed.Describe(ch)
	c.moved.Describe(ch)
	c.items.Describe(ch)
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.added.Collect(ch)
	c.removed.Collect(ch)
	c.moved.Collect(ch)
	c.items.Collect(ch)
}

// Source is any map that can be instrumented.
type Source[T any] interface {
	spatial.EventSource[T]
	Count() int
}

// Binding ties one map to a Collector until Detach is called.
type Binding struct {
	name string
	c    *Collector
	subs []*spatial.Subscription
}

// Instrument starts counting src's notifications under the label name. The
// item gauge starts at src's current Count.
func Instrument[T any](c *Collector, name string, src Source[T]) *Binding {
	added := c.added.WithLabelValues(name)
	removed := c.removed.WithLabelValues(name)
	moved := c.moved.WithLabelValues(name)
	items := c.items.WithLabelValues(name)
	items.Set(float64(src.Count()))

	return &Binding{
		name: name,
		c:    c,
		subs: []*spatial.Subscription{
			src.OnItemAdded(func(spatial.ItemEvent[T]) {
				added.Inc()
				items.Inc()
			}),
			src.OnItemRemoved(func(spatial.ItemEvent[T]) {
				removed.Inc()
				items.Dec()
			}),
			src.OnItemMoved(func(spatial.ItemMovedEvent[T]) {
				moved.Inc()
			}),
		},
	}
}

// Detach stops counting and drops the map's series.
func (b *Binding) Detach() {
	for _, sub := range b.subs {
		sub.Cancel()
	}
	b.c.added.DeleteLabelValues(b.name)
	b.c.removed.DeleteLabelValues(b.name)
	b.c.moved.DeleteLabelValues(b.name)
	b.c.items.DeleteLabelValues(b.name)
}
