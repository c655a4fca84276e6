package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	ResultSuccess           = "success"
	ResultFailure           = "failure"
	ResultNoop              = "noop"
	ResultInsufficientStock = "insufficient_stock"
	ResultEmptyCart         = "empty_cart"
)

// CartMetrics counts cart mutations, guest cart merges and order placements.
type CartMetrics struct {
	mutations         *prometheus.CounterVec
	merges            *prometheus.CounterVec
	placements        *prometheus.CounterVec
	placementDuration prometheus.Histogram
}

// NewCartMetrics registers the cart metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "line_mutations_total",
		Help:      "Cart line mutations by operation and result.",
	}, []string{"op", "result"})
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cart",
		Name:      "merge_total",
		Help:      "Guest cart merges attempted at login.",
	}, []string{"result"})
	placements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "placements_total",
		Help:      "Order placement attempts by result.",
	}, []string{"result"})
	placementDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "checkout",
		Name:      "placement_duration_seconds",
		Help:      "Time spent inside the order placement transaction.",
		Buckets:   prometheus.DefBuckets,
	})
	reg.MustRegister(mutations, merges, placements, placementDuration)
	return &CartMetrics{
		mutations:         mutations,
		merges:            merges,
		placements:        placements,
		placementDuration: placementDuration,
	}
}

func (m *CartMetrics) IncMutation(op, result string) {
	if m == nil || m.mutations == nil {
		return
	}
	m.mutations.WithLabelValues(normalizeLabel(op), normalizeLabel(result)).Inc()
}

func (m *CartMetrics) IncMerge(result string) {
	if m == nil || m.merges == nil {
		return
	}
	m.merges.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CartMetrics) IncPlacement(result string) {
	if m == nil || m.placements == nil {
		return
	}
	m.placements.WithLabelValues(normalizeLabel(result)).Inc()
}

func (m *CartMetrics) ObservePlacement(d time.Duration) {
	if m == nil || m.placementDuration == nil {
		return
	}
	m.placementDuration.Observe(d.Seconds())
}
