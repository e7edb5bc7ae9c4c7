// Package emitter delivers sensor readings to external sinks.
package emitter

import (
	"context"
	"errors"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Common errors returned by emitters
var (
	ErrClosed       = errors.New("emitter: closed")
	ErrNotConnected = errors.New("emitter: sink not connected")
	ErrDisabled     = errors.New("emitter: disabled in configuration")
)

// Emitter is a sink for readings.
//
// Implementations can send readings anywhere: a log, a file, a time series
// database. Pump feeds one from a stream.
type Emitter interface {
	// ID returns a unique identifier for this emitter instance
	// (e.g., "jsonl:stdout", "influx:sensors").
	ID() string

	// Type returns the emitter category (e.g., "log", "jsonl", "influx").
	Type() string

	// Emit writes a single reading. Returns ErrClosed after Close.
	Emit(ctx context.Context, r sensor.Reading) error

	// Close flushes pending output and releases resources.
	// Safe to call multiple times.
	Close() error
}
