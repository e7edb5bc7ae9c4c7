package stream

import (
	"errors"
	"fmt"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Errors delivered through streams and futures. All of them are terminal.
var (
	ErrDeviceNotFound       = errors.New("stream: device not found")
	ErrListenerRejected     = errors.New("stream: listener rejected")
	ErrDiscoveryUnsupported = errors.New("stream: device discovery unsupported")

	// ErrRegistrationRace is returned by a one-shot resolution attempt on a
	// future that has already resolved. Consumers never observe it.
	ErrRegistrationRace = errors.New("stream: one-shot resolved twice")

	// ErrCancelled marks the cancelled terminal state. It is not a failure.
	ErrCancelled = errors.New("stream: subscription cancelled")
)

// DeviceNotFoundError reports that no device resolves for a kind.
// It matches ErrDeviceNotFound with errors.Is.
type DeviceNotFoundError struct {
	Kind sensor.Kind
}

func (e *DeviceNotFoundError) Error() string {
	return fmt.Sprintf("stream: no device found for kind %s", e.Kind)
}

// Is reports whether target is ErrDeviceNotFound.
func (e *DeviceNotFoundError) Is(target error) bool {
	return target == ErrDeviceNotFound
}

// ListenerRejectedError reports that the registry refused a registration or
// one-shot request. It matches ErrListenerRejected with errors.Is.
type ListenerRejectedError struct {
	Device sensor.Device
}

func (e *ListenerRejectedError) Error() string {
	return fmt.Sprintf("stream: registry rejected listener for %s", e.Device)
}

// Is reports whether target is ErrListenerRejected.
func (e *ListenerRejectedError) Is(target error) bool {
	return target == ErrListenerRejected
}

// reason maps a terminal error to a metrics label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrDeviceNotFound):
		return "device_not_found"
	case errors.Is(err, ErrListenerRejected):
		return "listener_rejected"
	case errors.Is(err, ErrDiscoveryUnsupported):
		return "discovery_unsupported"
	default:
		return "other"
	}
}
