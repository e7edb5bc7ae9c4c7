// Package stream turns the listener-based registry API into cancellable
// streams and futures.
//
// Every subscription owns one registry registration and releases it exactly
// once. Failures (no device, rejected listener, no discovery support) are
// delivered through the stream or future itself. The package does no logging
// and never retries.
package stream

import (
	"context"
	"time"

	"github.com/BYTE-6D65/sensorstream/pkg/adapter"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
)

// DefaultBufferSize is the number of undelivered readings a continuous
// stream keeps before it starts discarding the oldest.
const DefaultBufferSize = 16

// Manager creates streams and futures over one registry.
type Manager struct {
	registry   adapter.Registry
	metrics    *telemetry.Metrics
	bufferSize int
}

// Option configures a Manager.
type Option func(*Manager)

// WithBufferSize sets how many undelivered readings a continuous stream keeps.
// A size of 1 keeps only the latest reading.
func WithBufferSize(size int) Option {
	return func(m *Manager) {
		if size < 1 {
			size = 1
		}
		m.bufferSize = size
	}
}

// WithMetrics records adapter activity in m.
func WithMetrics(metrics *telemetry.Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// NewManager creates a Manager over registry.
func NewManager(registry adapter.Registry, opts ...Option) *Manager {
	m := &Manager{
		registry:   registry,
		bufferSize: DefaultBufferSize,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Sampling returns a configuration with the given period and no batching.
func Sampling(period time.Duration) sensor.SamplingConfig {
	return sensor.SamplingConfig{Period: period}
}

// Observe streams the readings of the default device of kind.
//
// cfg is passed to the registry as is. Registries refuse configurations that
// fail cfg.Validate, which the stream reports as ListenerRejected.
//
// The stream holds its registration until it is closed or ctx is done.
func (m *Manager) Observe(ctx context.Context, kind sensor.Kind, cfg sensor.SamplingConfig) *Stream[sensor.Reading] {
	return observeDevice(m, ctx, telemetry.AdapterContinuous, kind, cfg,
		func(_ sensor.Device, evt sensor.Event) (sensor.Reading, bool) {
			vc, ok := evt.(sensor.ValueChanged)
			return vc.Reading, ok
		})
}

// ObserveAccuracy streams the accuracy changes of the default device of kind.
// cfg is validated by the registry the same way as for Observe.
func (m *Manager) ObserveAccuracy(ctx context.Context, kind sensor.Kind, cfg sensor.SamplingConfig) *Stream[sensor.AccuracyReading] {
	return observeDevice(m, ctx, telemetry.AdapterAccuracy, kind, cfg,
		func(dev sensor.Device, evt sensor.Event) (sensor.AccuracyReading, bool) {
			ac, ok := evt.(sensor.AccuracyChanged)
			if !ok {
				return sensor.AccuracyReading{}, false
			}
			return sensor.AccuracyReading{Device: dev, Accuracy: ac.Accuracy}, true
		})
}

func observeDevice[T any](
	m *Manager,
	ctx context.Context,
	name string,
	kind sensor.Kind,
	cfg sensor.SamplingConfig,
	mapFn func(sensor.Device, sensor.Event) (T, bool),
) *Stream[T] {
	s := newStream[T](name, newLatestRing[T](m.bufferSize), m.metrics)

	dev, ok := m.registry.DefaultDevice(kind)
	if !ok {
		s.sub.fail(&DeviceNotFoundError{Kind: kind})
		return s
	}

	l := newListener(s.ID(), func(evt sensor.Event) (T, bool) { return mapFn(dev, evt) }, s.push)

	timer := telemetry.NewTimer()
	accepted := m.registry.RegisterListener(l, dev, cfg.Period, cfg.MaxLatency)
	timer.ObserveRegister(m.metrics, name)
	if !accepted {
		s.sub.fail(&ListenerRejectedError{Device: dev})
		return s
	}

	s.sub.bind(func() { m.registry.UnregisterListener(l) })
	s.sub.watch(ctx)
	return s
}

// ObserveTrigger requests one trigger event from the default device of kind.
//
// The registry consumes the request when it fires. Cancelling the future, or
// ctx being done, before that withdraws the request.
func (m *Manager) ObserveTrigger(ctx context.Context, kind sensor.Kind) *Future[sensor.TriggerEvent] {
	name := telemetry.AdapterTrigger
	f := newFuture[sensor.TriggerEvent](name, m.metrics)

	dev, ok := m.registry.DefaultDevice(kind)
	if !ok {
		f.sub.fail(&DeviceNotFoundError{Kind: kind})
		return f
	}

	l := newListener(f.ID(),
		func(evt sensor.Event) (sensor.TriggerEvent, bool) {
			tr, ok := evt.(sensor.Triggered)
			return tr.Trigger, ok
		},
		func(v sensor.TriggerEvent) { _ = f.resolve(v) },
	)

	timer := telemetry.NewTimer()
	accepted := m.registry.RequestOneShot(l, dev)
	timer.ObserveRegister(m.metrics, name)
	if !accepted {
		f.sub.fail(&ListenerRejectedError{Device: dev})
		return f
	}

	f.sub.bind(func() { m.registry.CancelOneShot(l, dev) })
	f.sub.watch(ctx)
	return f
}

// ObserveConnections streams devices as they connect.
func (m *Manager) ObserveConnections(ctx context.Context) *Stream[sensor.Device] {
	return m.observeDiscovery(ctx, telemetry.AdapterConnections, sensor.Connected)
}

// ObserveDisconnections streams devices as they disconnect.
func (m *Manager) ObserveDisconnections(ctx context.Context) *Stream[sensor.Device] {
	return m.observeDiscovery(ctx, telemetry.AdapterDisconnections, sensor.Disconnected)
}

// observeDiscovery never drops: connection events are rare and each one matters.
func (m *Manager) observeDiscovery(ctx context.Context, name string, dir sensor.Direction) *Stream[sensor.Device] {
	s := newStream[sensor.Device](name, newFIFO[sensor.Device](), m.metrics)

	if !m.registry.SupportsDiscovery() {
		s.sub.fail(ErrDiscoveryUnsupported)
		return s
	}

	l := newListener(s.ID(),
		func(evt sensor.Event) (sensor.Device, bool) {
			de, ok := evt.(sensor.DiscoveryEvent)
			if !ok || de.Direction != dir {
				return sensor.Device{}, false
			}
			return de.Device, true
		},
		s.push,
	)

	timer := telemetry.NewTimer()
	m.registry.RegisterDiscoveryCallback(l)
	timer.ObserveRegister(m.metrics, name)

	s.sub.bind(func() { m.registry.UnregisterDiscoveryCallback(l) })
	s.sub.watch(ctx)
	return s
}
