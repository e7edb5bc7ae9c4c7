package mqttbridge

import (
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// DefaultDevice returns the first announced online device of kind.
func (b *Bridge) DefaultDevice(kind sensor.Kind) (sensor.Device, bool) {
	return b.devices.Find(func(d sensor.Device) bool { return d.Kind == kind })
}

// Devices returns the online devices in announcement order.
func (b *Bridge) Devices() []sensor.Device {
	entries := b.devices.List()
	out := make([]sensor.Device, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// RegisterListener records l for d and publishes the new demand to the
// device. It refuses when the bridge is not started, d is not online, d is a
// trigger device, the sampling durations are negative, or l is already
// registered.
func (b *Bridge) RegisterListener(l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) bool {
	if started, _ := b.running(); !started {
		return false
	}
	if _, ok := b.devices.Get(d.ID); !ok || d.Kind.IsTrigger() {
		b.logger.Debug("register refused", zap.String("device", d.ID), zap.Stringer("kind", d.Kind))
		return false
	}
	if err := (sensor.SamplingConfig{Period: period, MaxLatency: maxLatency}).Validate(); err != nil {
		b.logger.Debug("register refused", zap.String("device", d.ID), zap.Error(err))
		return false
	}
	reg := &registration{listener: l, device: d, period: period, maxLatency: maxLatency}
	if !b.listeners.Add(l.ID(), reg) {
		return false
	}
	b.publishControl(d.ID)
	return true
}

// UnregisterListener forgets every registration held by l.
func (b *Bridge) UnregisterListener(l sensor.Listener) {
	if reg, ok := b.listeners.Delete(l.ID()); ok {
		b.publishControl(reg.device.ID)
	}
	b.oneShots.Delete(l.ID())
}

// RequestOneShot waits for the next message on the device's trigger topic.
func (b *Bridge) RequestOneShot(l sensor.Listener, d sensor.Device) bool {
	if started, _ := b.running(); !started {
		return false
	}
	if _, ok := b.devices.Get(d.ID); !ok || !d.Kind.IsTrigger() {
		return false
	}
	return b.oneShots.Add(l.ID(), &registration{listener: l, device: d})
}

// CancelOneShot drops the pending request of l.
func (b *Bridge) CancelOneShot(l sensor.Listener, d sensor.Device) {
	b.oneShots.Delete(l.ID())
}

// SupportsDiscovery reports whether the bridge is connected to the broker.
// Announcements are only seen while connected.
func (b *Bridge) SupportsDiscovery() bool {
	_, connected := b.running()
	return connected
}

func (b *Bridge) RegisterDiscoveryCallback(l sensor.Listener) {
	b.watchers.Set(l.ID(), l)
}

func (b *Bridge) UnregisterDiscoveryCallback(l sensor.Listener) {
	b.watchers.Delete(l.ID())
}

// demand folds the registrations for a device into a control message: the
// fastest period and the tightest latency any listener asked for.
func (b *Bridge) demand(deviceID string) Control {
	var c Control
	for _, e := range b.listeners.List() {
		reg := e.Value
		if reg.device.ID != deviceID {
			continue
		}
		period := reg.period.Milliseconds()
		latency := reg.maxLatency.Milliseconds()
		if !c.Active || period < c.PeriodMS {
			c.PeriodMS = period
		}
		if !c.Active || latency < c.MaxLatencyMS {
			c.MaxLatencyMS = latency
		}
		c.Active = true
	}
	return c
}

func (b *Bridge) publishControl(deviceID string) {
	c := b.demand(deviceID)
	payload, err := b.codec.Marshal(c)
	if err != nil {
		b.logger.Error("encoding control", zap.String("device", deviceID), zap.Error(err))
		return
	}
	if err := b.publish(b.topics.Control(deviceID), true, payload); err != nil {
		b.logger.Warn("publishing control", zap.String("device", deviceID), zap.Error(err))
	}
}
