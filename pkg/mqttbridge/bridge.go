// Package mqttbridge is a device registry backed by an MQTT broker. Devices
// (or gateways in front of them) announce themselves and publish readings;
// the bridge turns those messages into listener callbacks and tells devices
// what sampling their listeners ask for.
package mqttbridge

import (
	"context"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/adapter"
	"github.com/BYTE-6D65/sensorstream/pkg/catalog"
	"github.com/BYTE-6D65/sensorstream/pkg/clock"
	"github.com/BYTE-6D65/sensorstream/pkg/config"
	"github.com/BYTE-6D65/sensorstream/pkg/event"
	"github.com/BYTE-6D65/sensorstream/pkg/logging"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

const (
	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
	keepAlive         = 30 * time.Second

	// mapperWindow is how many device timestamps the clock fit follows.
	mapperWindow = 32
)

// Errors returned by the bridge.
var (
	ErrConnectionFailed = errors.New("mqttbridge: connection failed")
	ErrPublishFailed    = errors.New("mqttbridge: publish failed")
)

var _ adapter.Binding = (*Bridge)(nil)

// registration is one listener installed with the bridge.
type registration struct {
	listener   sensor.Listener
	device     sensor.Device
	period     time.Duration
	maxLatency time.Duration
}

// Bridge implements adapter.Binding over MQTT.
type Bridge struct {
	cfg    config.MQTTConfig
	topics Topics
	codec  event.Codec
	clk    clock.Clock
	logger *zap.Logger

	client paho.Client
	// publish sends a payload; replaced in tests
	publish func(topic string, retained bool, payload []byte) error

	devices   catalog.Catalog[sensor.Device]
	listeners catalog.Catalog[*registration]
	oneShots  catalog.Catalog[*registration]
	watchers  catalog.Catalog[sensor.Listener]

	// serializes discovery notifications and device table changes
	discoveryMu sync.Mutex

	mappersMu sync.Mutex
	mappers   map[string]clock.Mapper

	mu        sync.RWMutex
	started   bool
	connected bool
}

// New creates a bridge for cfg. Nothing connects until Start.
func New(cfg config.MQTTConfig, clk clock.Clock, logger *zap.Logger) *Bridge {
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	b := &Bridge{
		cfg:       cfg,
		topics:    Topics{Prefix: cfg.TopicPrefix},
		codec:     event.JSONCodec{},
		clk:       clk,
		logger:    logging.OrNop(logger).Named("mqtt"),
		devices:   catalog.New[sensor.Device](),
		listeners: catalog.New[*registration](),
		oneShots:  catalog.New[*registration](),
		watchers:  catalog.New[sensor.Listener](),
		mappers:   make(map[string]clock.Mapper),
	}
	b.publish = b.pahoPublish
	return b
}

func (b *Bridge) ID() string   { return "mqtt:" + b.cfg.Broker }
func (b *Bridge) Type() string { return "mqtt" }

// Topics returns the topic builder the bridge uses.
func (b *Bridge) Topics() Topics { return b.topics }

// Start connects to the broker and subscribes to device topics. Paho
// reconnects on its own; subscriptions are restored on every connect.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return adapter.ErrAlreadyStarted
	}
	b.mu.Unlock()

	opts := b.clientOptions()
	client := paho.NewClient(opts)
	token := client.Connect()

	select {
	case <-token.Done():
	case <-ctx.Done():
		client.Disconnect(0)
		return errors.Wrap(ctx.Err(), ErrConnectionFailed.Error())
	case <-time.After(b.connectTimeout()):
		client.Disconnect(0)
		return errors.Wrapf(ErrConnectionFailed, "timeout after %v", b.connectTimeout())
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(ErrConnectionFailed, "%s: %v", b.cfg.Broker, err)
	}

	b.mu.Lock()
	b.client = client
	b.started = true
	b.connected = client.IsConnectionOpen()
	b.mu.Unlock()

	b.logger.Info("connected", zap.String("broker", b.cfg.Broker), zap.String("prefix", b.cfg.TopicPrefix))
	return nil
}

func (b *Bridge) connectTimeout() time.Duration {
	if b.cfg.ConnectTimeout > 0 {
		return b.cfg.ConnectTimeout
	}
	return 10 * time.Second
}

func (b *Bridge) clientOptions() *paho.ClientOptions {
	opts := paho.NewClientOptions()
	opts.AddBroker(b.cfg.Broker)
	opts.SetClientID(b.cfg.ClientID)
	if b.cfg.Username != "" {
		opts.SetUsername(b.cfg.Username)
		opts.SetPassword(b.cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(b.connectTimeout())
	opts.SetKeepAlive(keepAlive)

	if will, err := b.codec.Marshal(Status{Status: "offline", ClientID: b.cfg.ClientID}); err == nil {
		opts.SetBinaryWill(b.topics.Status(b.cfg.ClientID), will, b.qos(), true)
	}

	opts.SetOnConnectHandler(func(c paho.Client) {
		b.onConnect(c)
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		b.onConnectionLost(err)
	})
	return opts
}

func (b *Bridge) qos() byte {
	return byte(b.cfg.QoS)
}

func (b *Bridge) onConnect(c paho.Client) {
	for _, category := range []string{CategoryDevices, CategoryReadings, CategoryAccuracy, CategoryTriggers} {
		topic := b.topics.Wildcard(category)
		token := c.Subscribe(topic, b.qos(), func(_ paho.Client, m paho.Message) {
			b.dispatch(m.Topic(), m.Payload())
		})
		if !token.WaitTimeout(publishTimeout) || token.Error() != nil {
			b.logger.Warn("subscribe failed", zap.String("topic", topic), zap.Error(token.Error()))
		}
	}

	b.mu.Lock()
	b.client = c
	b.connected = true
	b.mu.Unlock()

	if payload, err := b.codec.Marshal(Status{Status: "online", ClientID: b.cfg.ClientID}); err == nil {
		c.Publish(b.topics.Status(b.cfg.ClientID), b.qos(), true, payload)
	}
	// devices may have missed demand published while we were away
	for _, e := range b.devices.List() {
		b.publishControl(e.Key)
	}
}

func (b *Bridge) onConnectionLost(err error) {
	b.mu.Lock()
	b.connected = false
	b.mu.Unlock()
	b.logger.Warn("connection lost", zap.Error(err))
}

// Stop disconnects. Listeners still registered get a final NO_CONTACT;
// one-shots and discovery watchers are dropped without callbacks.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if !b.started {
		b.mu.Unlock()
		return nil
	}
	client := b.client
	b.started = false
	b.connected = false
	b.client = nil
	b.mu.Unlock()

	if client != nil && client.IsConnectionOpen() {
		if payload, err := b.codec.Marshal(Status{Status: "offline", ClientID: b.cfg.ClientID}); err == nil {
			client.Publish(b.topics.Status(b.cfg.ClientID), b.qos(), true, payload).WaitTimeout(publishTimeout)
		}
		client.Disconnect(disconnectQuiesce)
	}

	for _, key := range b.listeners.Keys() {
		if reg, ok := b.listeners.Delete(key); ok {
			reg.listener.Notify(sensor.AccuracyChanged{Device: reg.device, Accuracy: sensor.AccuracyNoContact})
		}
	}
	b.oneShots.Clear()
	b.watchers.Clear()
	b.logger.Info("disconnected")
	return nil
}

func (b *Bridge) pahoPublish(topic string, retained bool, payload []byte) error {
	b.mu.RLock()
	client := b.client
	b.mu.RUnlock()
	if client == nil {
		return errors.Wrap(ErrPublishFailed, "not connected")
	}
	token := client.Publish(topic, b.qos(), retained, payload)
	if !token.WaitTimeout(publishTimeout) {
		return errors.Wrapf(ErrPublishFailed, "%s: timeout", topic)
	}
	if err := token.Error(); err != nil {
		return errors.Wrapf(ErrPublishFailed, "%s: %v", topic, err)
	}
	return nil
}

func (b *Bridge) running() (started, connected bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.started, b.connected
}

// activate marks the bridge as started and connected without a broker.
func (b *Bridge) activate() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.started = true
	b.connected = true
}

func (b *Bridge) mapper(deviceID string) clock.Mapper {
	b.mappersMu.Lock()
	defer b.mappersMu.Unlock()
	m, ok := b.mappers[deviceID]
	if !ok {
		m = clock.NewAffineMapper(mapperWindow)
		b.mappers[deviceID] = m
	}
	return m
}
