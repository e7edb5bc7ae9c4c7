package sim

import (
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// SupportsDiscovery reports whether the registry was configured with
// discovery.
func (r *Registry) SupportsDiscovery() bool { return r.discovery }

// RegisterDiscoveryCallback adds l to the discovery watchers.
func (r *Registry) RegisterDiscoveryCallback(l sensor.Listener) {
	r.watchers.Set(l.ID(), l)
}

// UnregisterDiscoveryCallback removes l from the discovery watchers.
func (r *Registry) UnregisterDiscoveryCallback(l sensor.Listener) {
	r.watchers.Delete(l.ID())
}

// Connect adds a device and announces it to discovery watchers on the
// caller's goroutine.
func (r *Registry) Connect(d sensor.Device) error {
	if !r.devices.Add(d.ID, d) {
		return ErrDuplicateDevice
	}
	r.logger.Info("device connected", zap.String("device", d.ID), zap.Stringer("kind", d.Kind))
	r.announce(sensor.DiscoveryEvent{Device: d, Direction: sensor.Connected})
	return nil
}

// Disconnect removes a device. Its producers report NO_CONTACT and stop;
// its pending one-shots are dropped without firing.
func (r *Registry) Disconnect(id string) error {
	d, ok := r.devices.Delete(id)
	if !ok {
		return ErrUnknownDevice
	}

	for _, e := range r.producers.List() {
		p := e.Value
		if p.device.ID != id {
			continue
		}
		p.halt()
		if _, still := r.producers.Get(e.Key); still {
			p.listener.Notify(sensor.AccuracyChanged{Device: d, Accuracy: sensor.AccuracyNoContact})
		}
	}
	for _, e := range r.oneShots.List() {
		if e.Value.device.ID != id {
			continue
		}
		if req, ok := r.oneShots.Delete(e.Key); ok {
			req.timer.Stop()
		}
	}

	r.logger.Info("device disconnected", zap.String("device", id))
	r.announce(sensor.DiscoveryEvent{Device: d, Direction: sensor.Disconnected})
	return nil
}

func (r *Registry) announce(evt sensor.DiscoveryEvent) {
	if !r.discovery {
		return
	}
	r.discoveryMu.Lock()
	defer r.discoveryMu.Unlock()
	for _, e := range r.watchers.List() {
		e.Value.Notify(evt)
	}
}
