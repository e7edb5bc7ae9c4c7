package stream

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.viam.com/test"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
	"github.com/BYTE-6D65/sensorstream/pkg/testutils/inject"
)

var motion = sensor.Device{ID: "motion-0", Kind: sensor.KindSignificantMotion, Name: "SMD"}

func trigger(v float64) sensor.Triggered {
	return sensor.Triggered{Trigger: sensor.TriggerEvent{Device: motion, Values: []float64{v}}}
}

func waitTimeout[T any](t *testing.T, f *Future[T]) (T, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return f.Wait(ctx)
}

func TestObserveTriggerDeviceNotFound(t *testing.T) {
	reg := inject.NewRegistry()
	f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	_, err := waitTimeout(t, f)
	test.That(t, errors.Is(err, ErrDeviceNotFound), test.ShouldBeTrue)
	test.That(t, reg.Calls(inject.MethodRequestOneShot), test.ShouldEqual, 0)
	test.That(t, f.Cancel(), test.ShouldBeFalse)
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 0)
}

func TestObserveTriggerRejected(t *testing.T) {
	reg := inject.NewRegistry(motion)
	reg.RequestOneShotFunc = func(sensor.Listener, sensor.Device) bool { return false }
	f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	_, err := waitTimeout(t, f)
	var rej *ListenerRejectedError
	test.That(t, errors.As(err, &rej), test.ShouldBeTrue)
	test.That(t, rej.Device, test.ShouldResemble, motion)
	test.That(t, f.Subscription().State(), test.ShouldEqual, StateFailed)
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 0)
}

func TestObserveTriggerFires(t *testing.T) {
	reg := inject.NewRegistry(motion)
	f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	go reg.Emit(trigger(1))

	ev, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev.Device, test.ShouldResemble, motion)
	test.That(t, ev.Values, test.ShouldResemble, []float64{1})
	test.That(t, f.Subscription().State(), test.ShouldEqual, StateResolved)

	// the registry consumed the request; cancelling afterwards releases nothing
	test.That(t, f.Cancel(), test.ShouldBeFalse)
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 0)

	ev2, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev2, test.ShouldResemble, ev)
}

func TestObserveTriggerFiresDuringRequest(t *testing.T) {
	reg := inject.NewRegistry(motion)
	reg.RequestOneShotFunc = func(l sensor.Listener, d sensor.Device) bool {
		l.Notify(trigger(3))
		return true
	}
	promReg := prometheus.NewRegistry()
	metrics := telemetry.InitMetrics(promReg)
	f := NewManager(reg, WithMetrics(metrics)).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	ev, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev.Values, test.ShouldResemble, []float64{3})
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 0)
	test.That(t, testutil.ToFloat64(metrics.SubscriptionsActive.WithLabelValues(telemetry.AdapterTrigger)), test.ShouldEqual, 0)
}

func TestObserveTriggerCancel(t *testing.T) {
	reg := inject.NewRegistry(motion)
	var captured sensor.Listener
	reg.RequestOneShotFunc = func(l sensor.Listener, d sensor.Device) bool {
		captured = l
		return true
	}
	f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	test.That(t, f.Cancel(), test.ShouldBeTrue)
	test.That(t, f.Cancel(), test.ShouldBeFalse)
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 1)

	// a callback already in flight loses the race and is dropped
	captured.Notify(trigger(1))

	_, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldEqual, ErrCancelled)
	test.That(t, f.Subscription().State(), test.ShouldEqual, StateCancelled)
}

func TestObserveTriggerContextTeardown(t *testing.T) {
	reg := inject.NewRegistry(motion)
	ctx, cancel := context.WithCancel(context.Background())
	f := NewManager(reg).ObserveTrigger(ctx, sensor.KindSignificantMotion)
	cancel()

	_, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldEqual, ErrCancelled)
	test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 1)
}

func TestFutureWaitContextOnlyBoundsTheWait(t *testing.T) {
	reg := inject.NewRegistry(motion)
	f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	test.That(t, errors.Is(err, context.DeadlineExceeded), test.ShouldBeTrue)
	test.That(t, f.Subscription().State(), test.ShouldEqual, StateArmed)

	reg.Emit(trigger(2))
	ev, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev.Values, test.ShouldResemble, []float64{2})
}

func TestObserveTriggerRaceHasExactlyOneOutcome(t *testing.T) {
	for round := 0; round < 200; round++ {
		reg := inject.NewRegistry(motion)
		f := NewManager(reg).ObserveTrigger(context.Background(), sensor.KindSignificantMotion)

		var wg sync.WaitGroup
		var cancelled bool
		start := make(chan struct{})
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			if rand.Intn(2) == 0 {
				time.Sleep(time.Duration(rand.Intn(50)) * time.Microsecond)
			}
			reg.Emit(trigger(1))
		}()
		go func() {
			defer wg.Done()
			<-start
			if rand.Intn(2) == 0 {
				time.Sleep(time.Duration(rand.Intn(50)) * time.Microsecond)
			}
			cancelled = f.Cancel()
		}()
		close(start)
		wg.Wait()

		fired := f.Subscription().State() == StateResolved
		test.That(t, fired != cancelled, test.ShouldBeTrue)
		_, err := waitTimeout(t, f)
		if fired {
			test.That(t, err, test.ShouldBeNil)
			test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 0)
		} else {
			test.That(t, err, test.ShouldEqual, ErrCancelled)
			test.That(t, reg.Calls(inject.MethodCancelOneShot), test.ShouldEqual, 1)
		}
	}
}

func TestFutureDoubleResolutionIsRace(t *testing.T) {
	promReg := prometheus.NewRegistry()
	metrics := telemetry.InitMetrics(promReg)
	f := newFuture[sensor.TriggerEvent](telemetry.AdapterTrigger, metrics)

	test.That(t, f.resolve(sensor.TriggerEvent{Values: []float64{1}}), test.ShouldBeNil)
	err := f.resolve(sensor.TriggerEvent{Values: []float64{2}})
	test.That(t, err, test.ShouldEqual, ErrRegistrationRace)
	test.That(t, testutil.ToFloat64(metrics.InvariantViolations.WithLabelValues(telemetry.AdapterTrigger)), test.ShouldEqual, 1)

	ev, err := waitTimeout(t, f)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, ev.Values, test.ShouldResemble, []float64{1})
}

func TestFutureResolveAfterFailureIsDiscarded(t *testing.T) {
	f := newFuture[sensor.TriggerEvent](telemetry.AdapterTrigger, nil)
	failure := &DeviceNotFoundError{Kind: sensor.KindSignificantMotion}
	test.That(t, f.sub.fail(failure), test.ShouldBeTrue)

	err := f.resolve(sensor.TriggerEvent{})
	test.That(t, err, test.ShouldEqual, failure)
}
