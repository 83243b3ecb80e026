package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CheckoutMetrics records order placement outcomes.
type CheckoutMetrics struct {
	duration          *prometheus.HistogramVec
	placed            *prometheus.CounterVec
	insufficientStock prometheus.Counter
	numberFallback    prometheus.Counter
}

// NewCheckoutMetrics registers the checkout metrics on the provided registerer.
func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	if reg == nil {
		return &CheckoutMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "checkout_duration_seconds",
		Help:    "Duration of order placement in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	placed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Orders placed, labeled by outcome.",
	}, []string{"outcome"})
	insufficientStock := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "checkout_insufficient_stock_total",
		Help: "Checkouts rejected because stock ran out.",
	})
	numberFallback := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "order_number_fallback_total",
		Help: "Order numbers minted via the random-suffix fallback path.",
	})
	reg.MustRegister(duration, placed, insufficientStock, numberFallback)
	return &CheckoutMetrics{
		duration:          duration,
		placed:            placed,
		insufficientStock: insufficientStock,
		numberFallback:    numberFallback,
	}
}

// ObserveDuration records how long placement took for the given outcome.
func (c *CheckoutMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncPlaced increments the placement counter for the given outcome.
func (c *CheckoutMetrics) IncPlaced(outcome string) {
	if c == nil || c.placed == nil {
		return
	}
	c.placed.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncInsufficientStock counts a checkout rejected for lack of stock.
func (c *CheckoutMetrics) IncInsufficientStock() {
	if c == nil || c.insufficientStock == nil {
		return
	}
	c.insufficientStock.Inc()
}

// IncNumberFallback counts an order number minted through the fallback path.
func (c *CheckoutMetrics) IncNumberFallback() {
	if c == nil || c.numberFallback == nil {
		return
	}
	c.numberFallback.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
