package adapter

import (
	"context"
	"errors"
	"time"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Common errors returned by registry bindings
var (
	ErrAlreadyStarted = errors.New("adapter: already started")
	ErrNotStarted     = errors.New("adapter: not started")
)

// Registry is the device registry contract the stream adapters are built on.
//
// Implementations wrap a concrete sensor subsystem (hardware, a broker, a
// simulator). Listener callbacks may arrive on any goroutine. Implementations
// must tolerate concurrent register/unregister calls and must treat the
// unregister and cancel operations as idempotent.
type Registry interface {
	// DefaultDevice resolves the device used for a kind, if any.
	DefaultDevice(kind sensor.Kind) (sensor.Device, bool)

	// RegisterListener starts value and accuracy callbacks for a device.
	// Returns false if the registration was refused.
	RegisterListener(l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) bool

	// UnregisterListener stops every callback for the listener.
	UnregisterListener(l sensor.Listener)

	// RequestOneShot arms a single Triggered callback for a device.
	// The registration is consumed by the registry after it fires.
	RequestOneShot(l sensor.Listener, d sensor.Device) bool

	// CancelOneShot disarms a pending one-shot request.
	CancelOneShot(l sensor.Listener, d sensor.Device)

	// SupportsDiscovery reports whether connect/disconnect callbacks are available.
	SupportsDiscovery() bool

	// RegisterDiscoveryCallback starts DiscoveryEvent callbacks.
	RegisterDiscoveryCallback(l sensor.Listener)

	// UnregisterDiscoveryCallback stops DiscoveryEvent callbacks.
	UnregisterDiscoveryCallback(l sensor.Listener)
}

// Binding is a Registry backed by a concrete source with its own lifecycle.
//
// Bindings are started before any stream is subscribed and stopped after all
// streams are done with them.
type Binding interface {
	Registry

	// ID returns a unique identifier for this binding instance
	// (e.g., "sim:default", "mqtt:tcp://broker:1883").
	ID() string

	// Type returns the binding type category (e.g., "sim", "mqtt").
	Type() string

	// Start connects the binding to its source.
	// Returns ErrAlreadyStarted if already running.
	Start(ctx context.Context) error

	// Stop releases the source and every registration still held.
	// Listeners still registered receive a final AccuracyChanged with
	// AccuracyNoContact. Pending one-shots and discovery callbacks are
	// dropped silently, so streams and futures should be cancelled before
	// Stop; ones left armed only end through their own Cancel or context.
	// Safe to call multiple times (idempotent).
	Stop() error
}
