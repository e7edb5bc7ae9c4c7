package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/adapter"
	"github.com/BYTE-6D65/sensorstream/pkg/clock"
	"github.com/BYTE-6D65/sensorstream/pkg/config"
	"github.com/BYTE-6D65/sensorstream/pkg/logging"
	"github.com/BYTE-6D65/sensorstream/pkg/mqttbridge"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/sim"
	"github.com/BYTE-6D65/sensorstream/pkg/stream"
	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
)

const shutdownTimeout = 5 * time.Second

// session is everything a command needs: configuration, a started binding
// and a stream manager over it.
type session struct {
	cfg     *config.Config
	logger  *zap.Logger
	binding adapter.Binding
	manager *stream.Manager
	metrics *telemetry.Metrics
	server  *http.Server
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.Path(flagConfig); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if c.Bool(flagDebug) {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

func newBinding(cfg *config.Config, logger *zap.Logger) (adapter.Binding, error) {
	clk := clock.NewSystemClock()
	switch cfg.Registry {
	case config.RegistryMQTT:
		return mqttbridge.New(cfg.MQTT, clk, logger), nil
	default:
		r, err := sim.FromConfig(cfg.Sim, clk, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// openSession starts the configured binding. The caller must close the
// session.
func openSession(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*session, error) {
	s := &session{cfg: cfg, logger: logger}

	reg := prometheus.NewRegistry()
	s.metrics = telemetry.InitMetrics(reg)
	if cfg.Metrics.Listen != "" {
		s.server = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server", zap.Error(err))
			}
		}()
		logger.Info("serving metrics", zap.String("listen", cfg.Metrics.Listen))
	}

	binding, err := newBinding(cfg, logger)
	if err != nil {
		return nil, multierr.Combine(err, s.Close())
	}
	if err := binding.Start(ctx); err != nil {
		return nil, multierr.Combine(errors.Wrapf(err, "starting %s", binding.ID()), s.Close())
	}
	s.binding = binding
	s.manager = stream.NewManager(binding,
		stream.WithBufferSize(cfg.BufferSize),
		stream.WithMetrics(s.metrics),
	)
	logger.Info("registry started", zap.String("binding", binding.ID()))
	return s, nil
}

// Close stops the binding and the metrics server.
func (s *session) Close() error {
	var err error
	if s.binding != nil {
		err = multierr.Append(err, s.binding.Stop())
	}
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err = multierr.Append(err, s.server.Shutdown(ctx))
	}
	return err
}

func parseKinds(names []string) ([]sensor.Kind, error) {
	kinds := make([]sensor.Kind, 0, len(names))
	for _, name := range names {
		k, err := sensor.ParseKind(name)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// setupLogger builds the configured logger. zap writes to stderr, leaving
// stdout to the command.
func setupLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, errors.Wrap(err, "creating logger")
	}
	return logger, nil
}
