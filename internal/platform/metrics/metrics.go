package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the declaration lifecycle.
// Registered on the default registry; construct once in main.
type Metrics struct {
	DeclarationsCreated  prometheus.Counter
	TransitionsTotal     *prometheus.CounterVec
	TransitionDuration   prometheus.Histogram
	NotificationFailures prometheus.Counter
	ProviderCacheHits    prometheus.Counter
	ProviderCacheMisses  prometheus.Counter
}

// New creates a Metrics instance with all lifecycle metrics registered.
func New() *Metrics {
	return &Metrics{
		DeclarationsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habita_declarations_created_total",
			Help: "Total number of declarations created",
		}),
		TransitionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "habita_transitions_total",
			Help: "Total number of committed status transitions by target status",
		}, []string{"to_status"}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "habita_transition_duration_seconds",
			Help:    "Duration of transition operations including persistence and notification",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		NotificationFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habita_notification_failures_total",
			Help: "Total number of notification dispatches that failed after the status was committed",
		}),
		ProviderCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habita_provider_cache_hits_total",
			Help: "Active-provider listings served from the redis cache",
		}),
		ProviderCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "habita_provider_cache_misses_total",
			Help: "Active-provider listings that fell through to the store",
		}),
	}
}

// ObserveTransition records the duration of a transition operation.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveTransition(start time.Time) {
	if m == nil {
		return
	}
	m.TransitionDuration.Observe(time.Since(start).Seconds())
}

// IncrementTransition records a committed transition to the given status.
func (m *Metrics) IncrementTransition(toStatus string) {
	if m == nil {
		return
	}
	m.TransitionsTotal.WithLabelValues(toStatus).Inc()
}

// IncrementNotificationFailure records a best-effort notification failure.
func (m *Metrics) IncrementNotificationFailure() {
	if m == nil {
		return
	}
	m.NotificationFailures.Inc()
}

// IncrementDeclarationsCreated records a successful declaration creation.
func (m *Metrics) IncrementDeclarationsCreated() {
	if m == nil {
		return
	}
	m.DeclarationsCreated.Inc()
}
