// Package sim is a software device registry. It produces plausible readings
// for configured devices so streams can be exercised without hardware.
package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/adapter"
	"github.com/BYTE-6D65/sensorstream/pkg/catalog"
	"github.com/BYTE-6D65/sensorstream/pkg/clock"
	"github.com/BYTE-6D65/sensorstream/pkg/config"
	"github.com/BYTE-6D65/sensorstream/pkg/logging"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// MinPeriod is the fastest rate the simulator produces readings at.
const MinPeriod = 5 * time.Millisecond

// Errors returned by Connect and Disconnect.
var (
	ErrDuplicateDevice = errors.New("sim: device already connected")
	ErrUnknownDevice   = errors.New("sim: unknown device")
)

var _ adapter.Binding = (*Registry)(nil)

// Options configures a Registry.
type Options struct {
	Name    string
	Devices []sensor.Device

	// Discovery enables connect/disconnect callbacks.
	Discovery bool

	// TriggerDelay is how long a one-shot request waits before firing.
	// Zero means requests only fire through Fire.
	TriggerDelay time.Duration

	Seed   int64
	Clock  clock.Clock
	Logger *zap.Logger
}

// Registry implements adapter.Binding in software.
type Registry struct {
	name         string
	discovery    bool
	triggerDelay time.Duration
	clk          clock.Clock
	logger       *zap.Logger

	devices   catalog.Catalog[sensor.Device]
	producers catalog.Catalog[*producer]
	oneShots  catalog.Catalog[*oneShot]
	watchers  catalog.Catalog[sensor.Listener]

	// serializes discovery notifications so every watcher sees one order
	discoveryMu sync.Mutex

	rngMu sync.Mutex
	rng   *rand.Rand

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// New creates a simulated registry.
func New(opts Options) *Registry {
	if opts.Name == "" {
		opts.Name = "default"
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewSystemClock()
	}
	r := &Registry{
		name:         opts.Name,
		discovery:    opts.Discovery,
		triggerDelay: opts.TriggerDelay,
		clk:          opts.Clock,
		logger:       logging.OrNop(opts.Logger).Named("sim"),
		devices:      catalog.New[sensor.Device](),
		producers:    catalog.New[*producer](),
		oneShots:     catalog.New[*oneShot](),
		watchers:     catalog.New[sensor.Listener](),
		rng:          rand.New(rand.NewSource(opts.Seed)),
	}
	for _, d := range opts.Devices {
		r.devices.Set(d.ID, d)
	}
	return r
}

// FromConfig creates a simulated registry from the sim configuration section.
func FromConfig(cfg config.SimConfig, clk clock.Clock, logger *zap.Logger) (*Registry, error) {
	devices, err := cfg.DeviceList()
	if err != nil {
		return nil, err
	}
	return New(Options{
		Devices:      devices,
		Discovery:    cfg.Discovery,
		TriggerDelay: cfg.TriggerDelay,
		Seed:         cfg.Seed,
		Clock:        clk,
		Logger:       logger,
	}), nil
}

func (r *Registry) ID() string   { return "sim:" + r.name }
func (r *Registry) Type() string { return "sim" }

// Start enables registrations. Producers stop when ctx is done.
func (r *Registry) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return adapter.ErrAlreadyStarted
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.started = true
	r.logger.Info("started", zap.Int("devices", r.devices.Len()), zap.Bool("discovery", r.discovery))
	return nil
}

// Stop halts every producer and pending one-shot. Listeners still registered
// get a final NO_CONTACT; one-shots and discovery watchers are dropped
// without callbacks.
func (r *Registry) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.cancel()
	r.mu.Unlock()

	for _, key := range r.producers.Keys() {
		p, ok := r.producers.Delete(key)
		if !ok {
			// unregistered concurrently
			continue
		}
		p.halt()
		p.listener.Notify(sensor.AccuracyChanged{Device: p.device, Accuracy: sensor.AccuracyNoContact})
	}
	for _, e := range r.oneShots.List() {
		e.Value.timer.Stop()
	}
	r.oneShots.Clear()
	r.watchers.Clear()

	r.logger.Info("stopped")
	return nil
}

func (r *Registry) runContext() (context.Context, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ctx, r.started
}

// DefaultDevice returns the first connected device of kind.
func (r *Registry) DefaultDevice(kind sensor.Kind) (sensor.Device, bool) {
	return r.devices.Find(func(d sensor.Device) bool { return d.Kind == kind })
}

// Devices returns the connected devices in connection order.
func (r *Registry) Devices() []sensor.Device {
	entries := r.devices.List()
	out := make([]sensor.Device, len(entries))
	for i, e := range entries {
		out[i] = e.Value
	}
	return out
}

// RegisterListener starts a producer for d. It refuses when the registry is
// not started, d is not connected, d only supports one-shot requests, the
// sampling durations are negative, or l is already registered.
func (r *Registry) RegisterListener(l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) bool {
	ctx, ok := r.runContext()
	if !ok {
		r.logger.Debug("register refused: not started", zap.String("listener", l.ID()))
		return false
	}
	if _, ok := r.devices.Get(d.ID); !ok {
		r.logger.Debug("register refused: unknown device", zap.String("device", d.ID))
		return false
	}
	if d.Kind.IsTrigger() {
		r.logger.Debug("register refused: trigger-only device", zap.String("device", d.ID))
		return false
	}
	if err := (sensor.SamplingConfig{Period: period, MaxLatency: maxLatency}).Validate(); err != nil {
		r.logger.Debug("register refused", zap.String("device", d.ID), zap.Error(err))
		return false
	}

	p := newProducer(r, l, d, period, maxLatency)
	if !r.producers.Add(l.ID(), p) {
		r.logger.Debug("register refused: duplicate listener", zap.String("listener", l.ID()))
		return false
	}
	p.start(ctx)

	r.logger.Debug("listener registered",
		zap.String("listener", l.ID()),
		zap.String("device", d.ID),
		zap.Duration("period", p.period),
		zap.Duration("max_latency", maxLatency),
	)
	return true
}

// UnregisterListener stops the producer and any one-shot held by l, and
// returns once no further callback will be made to l.
func (r *Registry) UnregisterListener(l sensor.Listener) {
	if p, ok := r.producers.Delete(l.ID()); ok {
		p.halt()
		r.logger.Debug("listener unregistered", zap.String("listener", l.ID()))
	}
	if req, ok := r.oneShots.Delete(l.ID()); ok {
		req.timer.Stop()
	}
}

func (r *Registry) noise(scale float64) float64 {
	r.rngMu.Lock()
	defer r.rngMu.Unlock()
	return r.rng.NormFloat64() * scale
}

func (r *Registry) now() time.Time {
	return r.clk.Wall(r.clk.Now())
}
