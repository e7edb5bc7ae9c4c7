package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchAction runs the dashboard until q is pressed or the process is
// interrupted.
func WatchAction(c *cli.Context) (err error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	kinds, err := parseKinds(c.StringSlice(flagKind))
	if err != nil {
		return err
	}
	triggerKinds, err := parseKinds([]string{c.String(flagTrigger)})
	if err != nil {
		return err
	}

	f := newFeed()
	logger := dashboardLogger(cfg.Logging.Level, f)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sess, err := openSession(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Append(err, sess.Close())
	}()

	watchDiscovery(ctx, f, sess.manager)
	for _, kind := range kinds {
		watchKind(ctx, f, sess.manager, kind, cfg.Sampling)
	}

	m := newModel(ctx, sess.manager, f, kinds, triggerKinds[0])
	if fr, ok := sess.binding.(firer); ok {
		m.fire = fr
	}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		err = nil
	}
	return err
}

// dashboardLogger logs into the dashboard instead of the terminal the
// dashboard is drawn on.
func dashboardLogger(level string, f feed) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	enc.LevelKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(f), lvl)
	return zap.New(core)
}
