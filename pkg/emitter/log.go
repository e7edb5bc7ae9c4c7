package emitter

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Log writes readings to a zap logger at debug level.
type Log struct {
	logger *zap.Logger
	closed atomic.Bool
}

// NewLog creates a Log emitter.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) ID() string   { return "log" }
func (l *Log) Type() string { return "log" }

// Emit logs r.
func (l *Log) Emit(_ context.Context, r sensor.Reading) error {
	if l.closed.Load() {
		return ErrClosed
	}
	l.logger.Debug("reading",
		zap.String("device", r.Device.ID),
		zap.Stringer("kind", r.Device.Kind),
		zap.Float64s("values", r.Values),
		zap.Stringer("accuracy", r.Accuracy),
		zap.Time("ts", r.Timestamp),
	)
	return nil
}

// Close syncs the logger.
func (l *Log) Close() error {
	if l.closed.Swap(true) {
		return nil
	}
	// Sync fails on terminals; nothing to recover
	_ = l.logger.Sync()
	return nil
}
