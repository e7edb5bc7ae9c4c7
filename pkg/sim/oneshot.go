package sim

import (
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// oneShot is a pending trigger request.
type oneShot struct {
	listener sensor.Listener
	device   sensor.Device
	timer    *time.Timer
}

// RequestOneShot arms a trigger for d. It refuses when the registry is not
// started, d is not connected, d is not a trigger device, or l already holds
// a request.
func (r *Registry) RequestOneShot(l sensor.Listener, d sensor.Device) bool {
	if _, ok := r.runContext(); !ok {
		return false
	}
	if _, ok := r.devices.Get(d.ID); !ok || !d.Kind.IsTrigger() {
		r.logger.Debug("one-shot refused", zap.String("device", d.ID), zap.Stringer("kind", d.Kind))
		return false
	}

	key := l.ID()
	req := &oneShot{listener: l, device: d}
	// armed stopped so the callback cannot run before the request is stored
	req.timer = time.AfterFunc(time.Hour, func() { r.fire(key) })
	req.timer.Stop()

	if !r.oneShots.Add(key, req) {
		return false
	}
	if r.triggerDelay > 0 {
		req.timer.Reset(r.triggerDelay)
	}
	r.logger.Debug("one-shot armed", zap.String("listener", key), zap.String("device", d.ID))
	return true
}

// CancelOneShot disarms the request held by l.
func (r *Registry) CancelOneShot(l sensor.Listener, d sensor.Device) {
	if req, ok := r.oneShots.Delete(l.ID()); ok {
		req.timer.Stop()
		r.logger.Debug("one-shot cancelled", zap.String("listener", l.ID()), zap.String("device", d.ID))
	}
}

// Fire triggers every pending request for deviceID now and returns how many
// fired.
func (r *Registry) Fire(deviceID string) int {
	fired := 0
	for _, e := range r.oneShots.List() {
		if e.Value.device.ID == deviceID && r.fire(e.Key) {
			fired++
		}
	}
	return fired
}

// fire consumes the request stored under key. Only the caller that removes
// it from the catalog delivers the event.
func (r *Registry) fire(key string) bool {
	req, ok := r.oneShots.Delete(key)
	if !ok {
		return false
	}
	req.timer.Stop()
	req.listener.Notify(sensor.Triggered{Trigger: sensor.TriggerEvent{
		Device:    req.device,
		Values:    []float64{1},
		Timestamp: r.now(),
	}})
	return true
}
