package mqttbridge

import (
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/event"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Errors returned by message handlers.
var (
	ErrBadTopic      = errors.New("mqttbridge: unrecognised topic")
	ErrUnknownDevice = errors.New("mqttbridge: device not announced")
	ErrTypeMismatch  = errors.New("mqttbridge: envelope type does not match topic")
	ErrIDMismatch    = errors.New("mqttbridge: payload id does not match topic")
)

// dispatch routes a broker message. Handler errors are logged; a bad
// message never reaches listeners.
func (b *Bridge) dispatch(topic string, payload []byte) {
	category, id, ok := b.topics.Parse(topic)
	if !ok {
		b.logger.Debug("ignoring topic", zap.String("topic", topic))
		return
	}

	var err error
	switch category {
	case CategoryDevices:
		err = b.handleDevice(id, payload)
	case CategoryReadings:
		err = b.handleReading(id, payload)
	case CategoryAccuracy:
		err = b.handleAccuracy(id, payload)
	case CategoryTriggers:
		err = b.handleTrigger(id, payload)
	default:
		err = ErrBadTopic
	}
	if err != nil {
		b.logger.Warn("dropping message", zap.String("topic", topic), zap.Error(err))
	}
}

// handleDevice applies an announcement. An empty payload is a cleared
// retained message and counts as offline.
func (b *Bridge) handleDevice(id string, payload []byte) error {
	b.discoveryMu.Lock()
	defer b.discoveryMu.Unlock()

	var a Announcement
	if len(payload) > 0 {
		if err := b.codec.Unmarshal(payload, &a); err != nil {
			return errors.Wrap(err, "decoding announcement")
		}
		if a.ID != "" && a.ID != id {
			return errors.Wrapf(ErrIDMismatch, "%q on %q", a.ID, id)
		}
	}

	if !a.Online {
		d, ok := b.devices.Delete(id)
		if !ok {
			return nil
		}
		b.dropDevice(d)
		b.logger.Info("device offline", zap.String("device", id))
		b.announce(sensor.DiscoveryEvent{Device: d, Direction: sensor.Disconnected})
		return nil
	}

	kind, err := sensor.ParseKind(a.Kind)
	if err != nil {
		return err
	}
	d := sensor.Device{ID: id, Kind: kind, Name: a.Name, Vendor: a.Vendor, Dynamic: a.Dynamic}
	if prev, ok := b.devices.Get(id); ok {
		if prev == d {
			// retained messages are redelivered on every reconnect
			return nil
		}
		b.devices.Set(id, d)
		b.logger.Info("device updated", zap.String("device", id), zap.Stringer("kind", kind))
		return nil
	}
	b.devices.Set(id, d)
	b.logger.Info("device online", zap.String("device", id), zap.Stringer("kind", kind))
	b.announce(sensor.DiscoveryEvent{Device: d, Direction: sensor.Connected})
	b.publishControl(id)
	return nil
}

// dropDevice tells listeners of d that contact is lost and discards its
// pending one-shots.
func (b *Bridge) dropDevice(d sensor.Device) {
	for _, e := range b.listeners.List() {
		if e.Value.device.ID == d.ID {
			e.Value.listener.Notify(sensor.AccuracyChanged{Device: d, Accuracy: sensor.AccuracyNoContact})
		}
	}
	for _, e := range b.oneShots.List() {
		if e.Value.device.ID == d.ID {
			b.oneShots.Delete(e.Key)
		}
	}
	b.mappersMu.Lock()
	delete(b.mappers, d.ID)
	b.mappersMu.Unlock()
}

func (b *Bridge) announce(evt sensor.DiscoveryEvent) {
	for _, e := range b.watchers.List() {
		e.Value.Notify(evt)
	}
}

// handleReading delivers a reading envelope to the listeners of its device.
func (b *Bridge) handleReading(id string, payload []byte) error {
	env, d, err := b.open(id, payload, event.TypeReading)
	if err != nil {
		return err
	}
	var p ReadingPayload
	if err := env.DecodePayload(&p, b.codec); err != nil {
		return errors.Wrap(err, "decoding reading")
	}
	accuracy := sensor.AccuracyHigh
	if p.Accuracy != nil {
		accuracy = *p.Accuracy
	}
	r := sensor.Reading{Device: d, Values: p.Values, Accuracy: accuracy, Timestamp: b.timestamp(id, env)}
	for _, e := range b.listeners.List() {
		if e.Value.device.ID == id {
			e.Value.listener.Notify(sensor.ValueChanged{Reading: r})
		}
	}
	return nil
}

func (b *Bridge) handleAccuracy(id string, payload []byte) error {
	env, d, err := b.open(id, payload, event.TypeAccuracy)
	if err != nil {
		return err
	}
	var p AccuracyPayload
	if err := env.DecodePayload(&p, b.codec); err != nil {
		return errors.Wrap(err, "decoding accuracy")
	}
	for _, e := range b.listeners.List() {
		if e.Value.device.ID == id {
			e.Value.listener.Notify(sensor.AccuracyChanged{Device: d, Accuracy: p.Accuracy})
		}
	}
	return nil
}

// handleTrigger consumes every pending one-shot for the device. A request
// cancelled concurrently is skipped.
func (b *Bridge) handleTrigger(id string, payload []byte) error {
	env, d, err := b.open(id, payload, event.TypeTrigger)
	if err != nil {
		return err
	}
	var p TriggerPayload
	if err := env.DecodePayload(&p, b.codec); err != nil {
		return errors.Wrap(err, "decoding trigger")
	}
	te := sensor.TriggerEvent{Device: d, Values: p.Values, Timestamp: b.timestamp(id, env)}
	for _, e := range b.oneShots.List() {
		if e.Value.device.ID != id {
			continue
		}
		if reg, ok := b.oneShots.Delete(e.Key); ok {
			reg.listener.Notify(sensor.Triggered{Trigger: te})
		}
	}
	return nil
}

// open decodes an envelope addressed to an announced device.
func (b *Bridge) open(id string, payload []byte, typ string) (*event.Envelope, sensor.Device, error) {
	d, ok := b.devices.Get(id)
	if !ok {
		return nil, d, errors.Wrap(ErrUnknownDevice, id)
	}
	env, err := event.Decode(payload, b.codec)
	if err != nil {
		return nil, d, errors.Wrap(err, "decoding envelope")
	}
	if env.Type != typ {
		return nil, d, errors.Wrapf(ErrTypeMismatch, "%q on %s topic", env.Type, typ)
	}
	return env, d, nil
}

// timestamp places an envelope on the local timeline. Device clocks are
// mapped through a per-device fit; otherwise the publisher's wall clock is
// used, and failing that the arrival time.
func (b *Bridge) timestamp(id string, env *event.Envelope) time.Time {
	now := b.clk.Now()
	if env.DeviceTime != 0 {
		m := b.mapper(id)
		m.Observe(env.DeviceTime, now)
		return b.clk.Wall(m.Map(env.DeviceTime))
	}
	if !env.Timestamp.IsZero() {
		return env.Timestamp
	}
	return b.clk.Wall(now)
}
