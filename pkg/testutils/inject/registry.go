// Package inject provides injectable fakes of sensorstream interfaces for tests.
package inject

import (
	"sync"
	"time"

	"github.com/BYTE-6D65/sensorstream/pkg/adapter"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Method names accepted by Registry.Calls.
const (
	MethodDefaultDevice               = "DefaultDevice"
	MethodRegisterListener            = "RegisterListener"
	MethodUnregisterListener          = "UnregisterListener"
	MethodRequestOneShot              = "RequestOneShot"
	MethodCancelOneShot               = "CancelOneShot"
	MethodSupportsDiscovery           = "SupportsDiscovery"
	MethodRegisterDiscoveryCallback   = "RegisterDiscoveryCallback"
	MethodUnregisterDiscoveryCallback = "UnregisterDiscoveryCallback"
)

var _ adapter.Registry = (*Registry)(nil)

// Registry is an injected device registry.
//
// Each method calls its Func field when set. Otherwise registrations are
// accepted and the listener is remembered, so tests can drive it through
// Emit and EmitDiscovery. DefaultDevice resolves nothing by default.
type Registry struct {
	DefaultDeviceFunc               func(kind sensor.Kind) (sensor.Device, bool)
	RegisterListenerFunc            func(l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) bool
	UnregisterListenerFunc          func(l sensor.Listener)
	RequestOneShotFunc              func(l sensor.Listener, d sensor.Device) bool
	CancelOneShotFunc               func(l sensor.Listener, d sensor.Device)
	SupportsDiscoveryFunc           func() bool
	RegisterDiscoveryCallbackFunc   func(l sensor.Listener)
	UnregisterDiscoveryCallbackFunc func(l sensor.Listener)

	mu        sync.Mutex
	calls     map[string]int
	listeners []sensor.Listener
	discovery []sensor.Listener
}

// NewRegistry returns an injected registry that resolves devices for kind.
func NewRegistry(devices ...sensor.Device) *Registry {
	r := &Registry{}
	if len(devices) > 0 {
		r.DefaultDeviceFunc = func(kind sensor.Kind) (sensor.Device, bool) {
			for _, d := range devices {
				if d.Kind == kind {
					return d, true
				}
			}
			return sensor.Device{}, false
		}
	}
	return r
}

func (r *Registry) record(method string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.calls == nil {
		r.calls = make(map[string]int)
	}
	r.calls[method]++
}

// Calls returns how many times method was invoked.
func (r *Registry) Calls(method string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[method]
}

// Listeners returns the listeners currently registered through the default
// RegisterListener/RequestOneShot behavior.
func (r *Registry) Listeners() []sensor.Listener {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sensor.Listener(nil), r.listeners...)
}

// Emit notifies every listener registered through the default behavior.
func (r *Registry) Emit(evt sensor.Event) {
	for _, l := range r.Listeners() {
		l.Notify(evt)
	}
}

// EmitDiscovery notifies every registered discovery callback.
func (r *Registry) EmitDiscovery(evt sensor.DiscoveryEvent) {
	r.mu.Lock()
	cbs := append([]sensor.Listener(nil), r.discovery...)
	r.mu.Unlock()
	for _, l := range cbs {
		l.Notify(evt)
	}
}

// DefaultDevice calls the injected DefaultDeviceFunc or resolves nothing.
func (r *Registry) DefaultDevice(kind sensor.Kind) (sensor.Device, bool) {
	r.record(MethodDefaultDevice)
	if r.DefaultDeviceFunc == nil {
		return sensor.Device{}, false
	}
	return r.DefaultDeviceFunc(kind)
}

// RegisterListener calls the injected RegisterListenerFunc or accepts.
func (r *Registry) RegisterListener(l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) bool {
	r.record(MethodRegisterListener)
	if r.RegisterListenerFunc == nil {
		r.add(&r.listeners, l)
		return true
	}
	return r.RegisterListenerFunc(l, d, period, maxLatency)
}

// UnregisterListener calls the injected UnregisterListenerFunc or forgets l.
func (r *Registry) UnregisterListener(l sensor.Listener) {
	r.record(MethodUnregisterListener)
	if r.UnregisterListenerFunc == nil {
		r.remove(&r.listeners, l)
		return
	}
	r.UnregisterListenerFunc(l)
}

// RequestOneShot calls the injected RequestOneShotFunc or accepts.
func (r *Registry) RequestOneShot(l sensor.Listener, d sensor.Device) bool {
	r.record(MethodRequestOneShot)
	if r.RequestOneShotFunc == nil {
		r.add(&r.listeners, l)
		return true
	}
	return r.RequestOneShotFunc(l, d)
}

// CancelOneShot calls the injected CancelOneShotFunc or forgets l.
func (r *Registry) CancelOneShot(l sensor.Listener, d sensor.Device) {
	r.record(MethodCancelOneShot)
	if r.CancelOneShotFunc == nil {
		r.remove(&r.listeners, l)
		return
	}
	r.CancelOneShotFunc(l, d)
}

// SupportsDiscovery calls the injected SupportsDiscoveryFunc or reports true.
func (r *Registry) SupportsDiscovery() bool {
	r.record(MethodSupportsDiscovery)
	if r.SupportsDiscoveryFunc == nil {
		return true
	}
	return r.SupportsDiscoveryFunc()
}

// RegisterDiscoveryCallback calls the injected func or remembers l.
func (r *Registry) RegisterDiscoveryCallback(l sensor.Listener) {
	r.record(MethodRegisterDiscoveryCallback)
	if r.RegisterDiscoveryCallbackFunc == nil {
		r.add(&r.discovery, l)
		return
	}
	r.RegisterDiscoveryCallbackFunc(l)
}

// UnregisterDiscoveryCallback calls the injected func or forgets l.
func (r *Registry) UnregisterDiscoveryCallback(l sensor.Listener) {
	r.record(MethodUnregisterDiscoveryCallback)
	if r.UnregisterDiscoveryCallbackFunc == nil {
		r.remove(&r.discovery, l)
		return
	}
	r.UnregisterDiscoveryCallbackFunc(l)
}

func (r *Registry) add(list *[]sensor.Listener, l sensor.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*list = append(*list, l)
}

func (r *Registry) remove(list *[]sensor.Listener, l sensor.Listener) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, existing := range *list {
		if existing == l {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return
		}
	}
}
