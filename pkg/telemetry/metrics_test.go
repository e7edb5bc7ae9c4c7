package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SubscriptionStarted(AdapterContinuous)
	m.SubscriptionEnded(AdapterContinuous)
	m.Failure(AdapterTrigger, "device_not_found")
	m.Delivered(AdapterContinuous)
	m.Dropped(AdapterContinuous)
	m.Discarded(AdapterConnections)
	m.InvariantViolation(AdapterTrigger)
	NewTimer().ObserveRegister(m, AdapterContinuous)
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := InitMetrics(reg)

	m.SubscriptionStarted(AdapterContinuous)
	m.SubscriptionStarted(AdapterContinuous)
	m.SubscriptionEnded(AdapterContinuous)
	m.Failure(AdapterTrigger, "listener_rejected")
	m.Delivered(AdapterContinuous)
	m.Dropped(AdapterContinuous)
	m.Dropped(AdapterContinuous)
	m.Discarded(AdapterDisconnections)
	m.InvariantViolation(AdapterTrigger)
	NewTimer().ObserveRegister(m, AdapterContinuous)

	test.That(t, testutil.ToFloat64(m.SubscriptionsStarted.WithLabelValues(AdapterContinuous)), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(m.SubscriptionsActive.WithLabelValues(AdapterContinuous)), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.SubscriptionsStarted.WithLabelValues(AdapterTrigger)), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.Failures.WithLabelValues(AdapterTrigger, "listener_rejected")), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.EventsDelivered.WithLabelValues(AdapterContinuous)), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.EventsDropped.WithLabelValues(AdapterContinuous)), test.ShouldEqual, 2)
	test.That(t, testutil.ToFloat64(m.EventsDiscarded.WithLabelValues(AdapterDisconnections)), test.ShouldEqual, 1)
	test.That(t, testutil.ToFloat64(m.InvariantViolations.WithLabelValues(AdapterTrigger)), test.ShouldEqual, 1)
	test.That(t, testutil.CollectAndCount(m.RegisterDuration), test.ShouldEqual, 1)
}
