package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/emitter"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// DumpAction prints the readings of one kind as JSON lines.
func DumpAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kind, err := sensor.ParseKind(c.String(flagKind))
	if err != nil {
		return err
	}
	logger, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer func() {
		// Sync fails on terminals; ignore it
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	// MultiWriter hides Close so stdout outlives the emitter
	var out emitter.Emitter = emitter.NewJSONLines("stdout", io.MultiWriter(c.App.Writer))
	if c.Bool(flagInflux) {
		cfg.Influx.Enabled = true
		influx, ierr := emitter.ConnectInflux(cfg.Influx, logger)
		if ierr != nil {
			return ierr
		}
		out = emitter.NewMulti(out, influx)
	}
	defer func() {
		err = multierr.Append(err, out.Close())
	}()

	sampling := cfg.Sampling
	if p := c.Duration(flagPeriod); p > 0 {
		sampling.Period = p
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	readings := sess.manager.Observe(ctx, kind, sampling)
	defer readings.Close()

	if n := c.Int(flagCount); n > 0 {
		out = newLimit(out, n, cancel)
	}

	err = emitter.Pump(ctx, readings, out)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info("dump finished", zap.Stringer("kind", kind), zap.Uint64("dropped", readings.Dropped()))
	return err
}

// limit passes n readings through and then calls done. Close is left to the
// wrapped emitter's owner.
type limit struct {
	emitter.Emitter
	remaining atomic.Int64
	done      func()
}

func newLimit(e emitter.Emitter, n int, done func()) *limit {
	l := &limit{Emitter: e, done: done}
	l.remaining.Store(int64(n))
	return l
}

func (l *limit) Emit(ctx context.Context, r sensor.Reading) error {
	left := l.remaining.Add(-1)
	if left < 0 {
		return nil
	}
	if err := l.Emitter.Emit(ctx, r); err != nil {
		return err
	}
	if left == 0 {
		l.done()
	}
	return nil
}
