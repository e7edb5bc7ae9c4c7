package emitter

import (
	"context"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/stream"
)

// Pump drains s into e until the stream ends or ctx is done. It returns nil
// when the stream was cancelled, ctx.Err() when ctx ended first, the stream
// failure, or the first Emit error (which also closes the stream). e stays
// open.
func Pump(ctx context.Context, s *stream.Stream[sensor.Reading], e Emitter) error {
	return s.Each(ctx, func(r sensor.Reading) error {
		return e.Emit(ctx, r)
	})
}
