package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Adapter label values.
const (
	AdapterContinuous     = "continuous"
	AdapterAccuracy       = "accuracy"
	AdapterTrigger        = "trigger"
	AdapterConnections    = "connections"
	AdapterDisconnections = "disconnections"
)

// Metrics holds the Prometheus metrics for the stream adapters.
//
// A nil *Metrics is valid and records nothing, so adapters can be built
// without a registry in tests and embedded uses.
type Metrics struct {
	SubscriptionsStarted *prometheus.CounterVec
	SubscriptionsActive  *prometheus.GaugeVec
	Failures             *prometheus.CounterVec
	RegisterDuration     *prometheus.HistogramVec

	EventsDelivered *prometheus.CounterVec
	EventsDropped   *prometheus.CounterVec
	EventsDiscarded *prometheus.CounterVec

	InvariantViolations *prometheus.CounterVec
}

// InitMetrics registers the metrics with the given registerer.
// A nil registerer means prometheus.DefaultRegisterer.
func InitMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	// 1µs .. ~16ms; registry calls are expected to be short
	registerBuckets := prometheus.ExponentialBuckets(0.000001, 2, 15)

	return &Metrics{
		SubscriptionsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_subscriptions_started_total",
				Help: "Total number of stream and future subscriptions",
			},
			[]string{"adapter"},
		),

		SubscriptionsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "sensorstream_subscriptions_active",
				Help: "Subscriptions currently holding a registry registration",
			},
			[]string{"adapter"},
		),

		Failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_subscription_failures_total",
				Help: "Subscriptions terminated by an error, by reason",
			},
			[]string{"adapter", "reason"},
		),

		RegisterDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sensorstream_register_duration_seconds",
				Help:    "Time spent in registry register calls",
				Buckets: registerBuckets,
			},
			[]string{"adapter"},
		),

		EventsDelivered: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_events_delivered_total",
				Help: "Values handed to consumers",
			},
			[]string{"adapter"},
		),

		EventsDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_events_dropped_total",
				Help: "Values replaced by newer ones before a slow consumer read them",
			},
			[]string{"adapter"},
		),

		EventsDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_events_discarded_total",
				Help: "Registry callbacks that arrived after the subscription ended",
			},
			[]string{"adapter"},
		),

		InvariantViolations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sensorstream_invariant_violations_total",
				Help: "Logically impossible states detected by the adapters",
			},
			[]string{"adapter"},
		),
	}
}

// SubscriptionStarted records a subscription that now holds a registration.
func (m *Metrics) SubscriptionStarted(adapter string) {
	if m == nil {
		return
	}
	m.SubscriptionsStarted.WithLabelValues(adapter).Inc()
	m.SubscriptionsActive.WithLabelValues(adapter).Inc()
}

// SubscriptionEnded records the release of a registration.
func (m *Metrics) SubscriptionEnded(adapter string) {
	if m == nil {
		return
	}
	m.SubscriptionsActive.WithLabelValues(adapter).Dec()
}

// Failure records a subscription terminated by an error.
func (m *Metrics) Failure(adapter, reason string) {
	if m == nil {
		return
	}
	m.SubscriptionsStarted.WithLabelValues(adapter).Inc()
	m.Failures.WithLabelValues(adapter, reason).Inc()
}

// Delivered records one value handed to a consumer.
func (m *Metrics) Delivered(adapter string) {
	if m == nil {
		return
	}
	m.EventsDelivered.WithLabelValues(adapter).Inc()
}

// Dropped records a value lost to latest-wins backpressure.
func (m *Metrics) Dropped(adapter string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(adapter).Inc()
}

// Discarded records a late callback ignored after disposal.
func (m *Metrics) Discarded(adapter string) {
	if m == nil {
		return
	}
	m.EventsDiscarded.WithLabelValues(adapter).Inc()
}

// InvariantViolation records a detected impossible state.
func (m *Metrics) InvariantViolation(adapter string) {
	if m == nil {
		return
	}
	m.InvariantViolations.WithLabelValues(adapter).Inc()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer starting now.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveRegister records the elapsed time as a register call of the adapter.
func (t *Timer) ObserveRegister(m *Metrics, adapter string) {
	if m == nil {
		return
	}
	m.RegisterDuration.WithLabelValues(adapter).Observe(time.Since(t.start).Seconds())
}

// Elapsed returns the time elapsed since the timer started.
func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
