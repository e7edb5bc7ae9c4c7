package sim

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/BYTE-6D65/sensorstream/pkg/clock"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// producer emits readings for one registration.
type producer struct {
	reg        *Registry
	listener   sensor.Listener
	device     sensor.Device
	period     time.Duration
	maxLatency time.Duration
	wave       waveform

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func newProducer(reg *Registry, l sensor.Listener, d sensor.Device, period, maxLatency time.Duration) *producer {
	if period < MinPeriod {
		period = MinPeriod
	}
	return &producer{
		reg:        reg,
		listener:   l,
		device:     d,
		period:     period,
		maxLatency: maxLatency,
		wave:       waveFor(d.Kind),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

func (p *producer) start(ctx context.Context) {
	go p.run(ctx)
}

// halt stops the producer and waits for it.
func (p *producer) halt() {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
}

func (p *producer) run(ctx context.Context) {
	defer close(p.done)

	p.listener.Notify(sensor.AccuracyChanged{Device: p.device, Accuracy: sensor.AccuracyHigh})

	ticker := time.NewTicker(p.period)
	defer ticker.Stop()

	var flush <-chan time.Time
	var batch []sensor.Reading
	if p.maxLatency > 0 {
		ft := time.NewTicker(p.maxLatency)
		defer ft.Stop()
		flush = ft.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			return
		case <-ticker.C:
			r := p.sample()
			if flush == nil {
				p.listener.Notify(sensor.ValueChanged{Reading: r})
				continue
			}
			batch = append(batch, r)
		case <-flush:
			for _, r := range batch {
				p.listener.Notify(sensor.ValueChanged{Reading: r})
			}
			batch = batch[:0]
		}
	}
}

func (p *producer) sample() sensor.Reading {
	mono := p.reg.clk.Now()
	t := clock.ToDuration(mono).Seconds()
	values := make([]float64, p.device.Kind.Channels())
	for ch := range values {
		values[ch] = p.wave.at(t, ch) + p.reg.noise(p.wave.noise)
	}
	return sensor.Reading{
		Device:    p.device,
		Values:    values,
		Accuracy:  sensor.AccuracyHigh,
		Timestamp: p.reg.clk.Wall(mono),
	}
}

// waveform describes the signal a kind produces: a per-channel baseline plus
// a sine whose phase shifts with the channel.
type waveform struct {
	base      []float64
	amplitude float64
	hz        float64
	noise     float64
}

func (w waveform) at(t float64, ch int) float64 {
	var base float64
	if ch < len(w.base) {
		base = w.base[ch]
	}
	phase := float64(ch) * 2 * math.Pi / 3
	return base + w.amplitude*math.Sin(2*math.Pi*w.hz*t+phase)
}

func waveFor(kind sensor.Kind) waveform {
	switch kind {
	case sensor.KindAccelerometer:
		return waveform{base: []float64{0, 0, 9.81}, amplitude: 0.4, hz: 1, noise: 0.02}
	case sensor.KindGravity:
		return waveform{base: []float64{0, 0, 9.81}, amplitude: 0.05, hz: 0.1, noise: 0.001}
	case sensor.KindLinearAcceleration:
		return waveform{amplitude: 0.4, hz: 1, noise: 0.02}
	case sensor.KindGyroscope:
		return waveform{amplitude: 0.15, hz: 0.5, noise: 0.005}
	case sensor.KindMagneticField:
		return waveform{base: []float64{22, -5, -40}, amplitude: 2, hz: 0.2, noise: 0.3}
	case sensor.KindOrientation:
		return waveform{base: []float64{180, 0, 0}, amplitude: 10, hz: 0.05, noise: 0.5}
	case sensor.KindRotationVector:
		return waveform{base: []float64{0, 0, 0, 1, 0}, amplitude: 0.1, hz: 0.1, noise: 0.001}
	case sensor.KindLight:
		return waveform{base: []float64{320}, amplitude: 40, hz: 0.05, noise: 5}
	case sensor.KindPressure:
		return waveform{base: []float64{1013.25}, amplitude: 0.5, hz: 0.01, noise: 0.05}
	case sensor.KindProximity:
		return waveform{base: []float64{5}, hz: 0}
	case sensor.KindRelativeHumidity:
		return waveform{base: []float64{45}, amplitude: 2, hz: 0.01, noise: 0.2}
	case sensor.KindAmbientTemperature:
		return waveform{base: []float64{21.5}, amplitude: 0.5, hz: 0.005, noise: 0.05}
	case sensor.KindHeartRate:
		return waveform{base: []float64{68}, amplitude: 6, hz: 0.02, noise: 1}
	default:
		return waveform{amplitude: 1, hz: 1, noise: 0.01}
	}
}
