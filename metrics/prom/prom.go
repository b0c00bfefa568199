// Package prom exports cache and continuous accumulation metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/IvanBrykalov/pagecache/cache"
	"github.com/IvanBrykalov/pagecache/continuous"
)

// Adapter implements cache.Metrics and exports Prometheus counters/gauges.
// Safe for concurrent use; all Prometheus metric types are goroutine-safe.
type Adapter struct {
	hits     prometheus.Counter
	misses   prometheus.Counter
	loads    *prometheus.CounterVec
	latency  prometheus.Histogram
	evicts   *prometheus.CounterVec
	segments prometheus.Gauge
	items    prometheus.Gauge
}

// New constructs a Prometheus metrics adapter for a segment cache.
//   - reg:          registry to register metrics with (nil => prometheus.DefaultRegisterer)
//   - ns, sub:      Prometheus namespace and subsystem
//   - constLabels:  static labels applied to all metrics (may be nil)
func New(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *Adapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &Adapter{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "hits_total",
			Help:        "Queries answered from a resident segment",
			ConstLabels: constLabels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "misses_total",
			Help:        "Queries that waited for a segment load",
			ConstLabels: constLabels,
		}),
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "loads_total",
				Help:        "Segment fetches by result",
				ConstLabels: constLabels,
			},
			[]string{"result"},
		),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "load_duration_seconds",
			Help:        "Segment fetch latency",
			Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
			ConstLabels: constLabels,
		}),
		evicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "evictions_total",
				Help:        "Segments dropped by reason",
				ConstLabels: constLabels,
			},
			[]string{"reason"},
		),
		segments: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resident_segments",
			Help:        "Number of loaded segments",
			ConstLabels: constLabels,
		}),
		items: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   ns,
			Subsystem:   sub,
			Name:        "resident_items",
			Help:        "Number of items held by loaded segments",
			ConstLabels: constLabels,
		}),
	}
	reg.MustRegister(a.hits, a.misses, a.loads, a.latency, a.evicts, a.segments, a.items)
	return a
}

// Hit increments the hit counter.
func (a *Adapter) Hit() { a.hits.Inc() }

// Miss increments the miss counter.
func (a *Adapter) Miss() { a.misses.Inc() }

// Load counts the fetch by outcome and observes its latency.
func (a *Adapter) Load(d time.Duration, err error) {
	a.loads.WithLabelValues(result(err)).Inc()
	a.latency.Observe(d.Seconds())
}

// Evict increments the eviction counter with a reason label.
func (a *Adapter) Evict(r cache.EvictReason) {
	a.evicts.WithLabelValues(reason(r)).Inc()
}

// Size updates the residency gauges.
func (a *Adapter) Size(segments, items int) {
	a.segments.Set(float64(segments))
	a.items.Set(float64(items))
}

// reason maps EvictReason to a stable label value.
func reason(r cache.EvictReason) string {
	switch r {
	case cache.EvictCapacity:
		return "capacity"
	case cache.EvictInvalidated:
		return "invalidated"
	default:
		return "policy"
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Compile-time check: ensure Adapter implements cache.Metrics.
var _ cache.Metrics = (*Adapter)(nil)

// ContinuousAdapter implements continuous.Metrics.
type ContinuousAdapter struct {
	loads    *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	discards *prometheus.CounterVec
}

// NewContinuous constructs a Prometheus adapter for a continuous accumulation.
// Arguments are as for New.
func NewContinuous(reg prometheus.Registerer, ns, sub string, constLabels prometheus.Labels) *ContinuousAdapter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	a := &ContinuousAdapter{
		loads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "loads_total",
				Help:        "Page fetches by operation and result",
				ConstLabels: constLabels,
			},
			[]string{"op", "result"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "load_duration_seconds",
				Help:        "Page fetch latency by operation",
				Buckets:     prometheus.ExponentialBuckets(0.001, 2, 14),
				ConstLabels: constLabels,
			},
			[]string{"op"},
		),
		discards: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace:   ns,
				Subsystem:   sub,
				Name:        "stale_discards_total",
				Help:        "Completed fetches dropped by version fencing",
				ConstLabels: constLabels,
			},
			[]string{"op"},
		),
	}
	reg.MustRegister(a.loads, a.latency, a.discards)
	return a
}

// Load counts the fetch by operation and outcome and observes its latency.
func (a *ContinuousAdapter) Load(op continuous.Op, d time.Duration, err error) {
	a.loads.WithLabelValues(op.String(), result(err)).Inc()
	a.latency.WithLabelValues(op.String()).Observe(d.Seconds())
}

// Discard counts a stale response.
func (a *ContinuousAdapter) Discard(op continuous.Op) {
	a.discards.WithLabelValues(op.String()).Inc()
}

var _ continuous.Metrics = (*ContinuousAdapter)(nil)
