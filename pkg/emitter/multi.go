package emitter

import (
	"context"
	"strings"

	"go.uber.org/multierr"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Multi fans every reading out to several emitters.
type Multi struct {
	emitters []Emitter
}

// NewMulti combines emitters.
func NewMulti(emitters ...Emitter) *Multi {
	return &Multi{emitters: emitters}
}

func (m *Multi) ID() string {
	ids := make([]string, len(m.emitters))
	for i, e := range m.emitters {
		ids[i] = e.ID()
	}
	return "multi:" + strings.Join(ids, ",")
}

func (m *Multi) Type() string { return "multi" }

// Emit sends r to every emitter, even when some fail.
func (m *Multi) Emit(ctx context.Context, r sensor.Reading) error {
	var err error
	for _, e := range m.emitters {
		err = multierr.Append(err, e.Emit(ctx, r))
	}
	return err
}

// Close closes every emitter.
func (m *Multi) Close() error {
	var err error
	for _, e := range m.emitters {
		err = multierr.Append(err, e.Close())
	}
	return err
}
