package mountainrange

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "mountainrange"

type metrics struct {
	appends         prometheus.Counter
	clears          prometheus.Counter
	failures        *prometheus.CounterVec
	publishFailures prometheus.Counter
	leaves          prometheus.Gauge
	elements        prometheus.Gauge
	appendSeconds   prometheus.Histogram
}

// newMetrics registers the store metrics with reg. A nil reg gives
// unregistered collectors, which still count.
func newMetrics(reg prometheus.Registerer, logID string) *metrics {
	factory := promauto.With(reg)
	labels := prometheus.Labels{"log_id": logID}

	return &metrics{
		appends: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "appends_total",
			Help:        "Leaves appended.",
			ConstLabels: labels,
		}),
		clears: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "clears_total",
			Help:        "Times the range was cleared.",
			ConstLabels: labels,
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "write_failures_total",
			Help:        "Writes that were rolled back.",
			ConstLabels: labels,
		}, []string{"op"}),
		publishFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Name:        "publish_failures_total",
			Help:        "Commitments the publisher rejected.",
			ConstLabels: labels,
		}),
		leaves: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "leaves",
			Help:        "Leaves in the committed range.",
			ConstLabels: labels,
		}),
		elements: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   metricsNamespace,
			Name:        "elements",
			Help:        "Nodes in the committed range.",
			ConstLabels: labels,
		}),
		appendSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace:   metricsNamespace,
			Name:        "append_seconds",
			Help:        "Time to apply an append, including node writes.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
	}
}

func (m *metrics) setCounts(leaves, elements uint64) {
	m.leaves.Set(float64(leaves))
	m.elements.Set(float64(elements))
}
