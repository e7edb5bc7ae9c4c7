// Package config loads sensorstream configuration from YAML with
// SENSORSTREAM_* environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Registry bindings.
const (
	RegistrySim  = "sim"
	RegistryMQTT = "mqtt"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SENSORSTREAM_"

// Config is the root configuration.
type Config struct {
	Registry   string                `yaml:"registry"`
	Sampling   sensor.SamplingConfig `yaml:"sampling"`
	BufferSize int                   `yaml:"buffer_size"`
	Sim        SimConfig             `yaml:"sim"`
	MQTT       MQTTConfig            `yaml:"mqtt"`
	Influx     InfluxConfig          `yaml:"influx"`
	Logging    LoggingConfig         `yaml:"logging"`
	Metrics    MetricsConfig         `yaml:"metrics"`
}

// DeviceConfig declares one simulated device. Kind accepts a name
// ("accelerometer") or a numeric kind.
type DeviceConfig struct {
	ID      string `yaml:"id"`
	Kind    string `yaml:"kind"`
	Name    string `yaml:"name"`
	Vendor  string `yaml:"vendor"`
	Dynamic bool   `yaml:"dynamic"`
}

// Device converts the declaration into a registry device.
func (d DeviceConfig) Device() (sensor.Device, error) {
	kind, err := sensor.ParseKind(d.Kind)
	if err != nil {
		return sensor.Device{}, errors.Wrapf(err, "device %q", d.ID)
	}
	return sensor.Device{
		ID:      d.ID,
		Kind:    kind,
		Name:    d.Name,
		Vendor:  d.Vendor,
		Dynamic: d.Dynamic,
	}, nil
}

// SimConfig configures the simulated registry.
type SimConfig struct {
	Devices      []DeviceConfig `yaml:"devices"`
	Discovery    bool           `yaml:"discovery"`
	TriggerDelay time.Duration  `yaml:"trigger_delay"`
	Seed         int64          `yaml:"seed"`
}

// MQTTConfig configures the MQTT registry bridge.
type MQTTConfig struct {
	Broker         string        `yaml:"broker"`
	ClientID       string        `yaml:"client_id"`
	TopicPrefix    string        `yaml:"topic_prefix"`
	QoS            int           `yaml:"qos"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// InfluxConfig configures the InfluxDB reading sink.
type InfluxConfig struct {
	Enabled       bool          `yaml:"enabled"`
	URL           string        `yaml:"url"`
	Token         string        `yaml:"token"`
	Org           string        `yaml:"org"`
	Bucket        string        `yaml:"bucket"`
	BatchSize     uint          `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Listen disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns a configuration that runs the simulator with a small
// phone-like device set.
func Default() *Config {
	return &Config{
		Registry:   RegistrySim,
		Sampling:   sensor.SamplingUI,
		BufferSize: 16,
		Sim: SimConfig{
			Devices: []DeviceConfig{
				{ID: "accel-0", Kind: "accelerometer", Name: "Simulated Accelerometer", Vendor: "sensorstream"},
				{ID: "gyro-0", Kind: "gyroscope", Name: "Simulated Gyroscope", Vendor: "sensorstream"},
				{ID: "mag-0", Kind: "magnetic_field", Name: "Simulated Magnetometer", Vendor: "sensorstream"},
				{ID: "light-0", Kind: "light", Name: "Simulated Light Sensor", Vendor: "sensorstream"},
				{ID: "motion-0", Kind: "significant_motion", Name: "Simulated Motion Detector", Vendor: "sensorstream"},
			},
			Discovery:    true,
			TriggerDelay: 3 * time.Second,
			Seed:         1,
		},
		MQTT: MQTTConfig{
			Broker:         "tcp://localhost:1883",
			ClientID:       "sensorstream",
			TopicPrefix:    "sensorstream",
			QoS:            1,
			ConnectTimeout: 10 * time.Second,
		},
		Influx: InfluxConfig{
			URL:           "http://localhost:8086",
			Bucket:        "sensors",
			BatchSize:     100,
			FlushInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "validating config")
	}
	return cfg, nil
}

// LoadFromEnv applies SENSORSTREAM_* overrides to cfg. Unparseable values are
// ignored.
func LoadFromEnv(cfg *Config) {
	if v := getenv("REGISTRY"); v != "" {
		cfg.Registry = v
	}
	if v := getenv("SAMPLING_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Sampling.Period = d
		}
	}
	if v := getenv("SAMPLING_MAX_LATENCY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			cfg.Sampling.MaxLatency = d
		}
	}
	if v := getenv("BUFFER_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.BufferSize = n
		}
	}

	// Sim
	if v := getenv("SIM_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Sim.Seed = n
		}
	}
	if v := getenv("SIM_DISCOVERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Sim.Discovery = b
		}
	}

	// MQTT
	if v := getenv("MQTT_BROKER"); v != "" {
		cfg.MQTT.Broker = v
	}
	if v := getenv("MQTT_CLIENT_ID"); v != "" {
		cfg.MQTT.ClientID = v
	}
	if v := getenv("MQTT_USERNAME"); v != "" {
		cfg.MQTT.Username = v
	}
	if v := getenv("MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Password = v
	}

	// InfluxDB
	if v := getenv("INFLUX_URL"); v != "" {
		cfg.Influx.URL = v
	}
	if v := getenv("INFLUX_TOKEN"); v != "" {
		cfg.Influx.Token = v
	}
	if v := getenv("INFLUX_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Influx.Enabled = b
		}
	}

	// Logging
	if v := getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := getenv("METRICS_LISTEN"); v != "" {
		cfg.Metrics.Listen = v
	}
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(EnvPrefix + key))
}

// Validate reports every configuration problem at once.
func (c *Config) Validate() error {
	var err error

	switch c.Registry {
	case RegistrySim:
		err = multierr.Append(err, c.Sim.validate())
	case RegistryMQTT:
		err = multierr.Append(err, c.MQTT.validate())
	default:
		err = multierr.Append(err, errors.Errorf("registry must be %q or %q, got %q", RegistrySim, RegistryMQTT, c.Registry))
	}

	if e := c.Sampling.Validate(); e != nil {
		err = multierr.Append(err, errors.Wrap(e, "sampling"))
	}
	if c.BufferSize < 1 {
		err = multierr.Append(err, errors.New("buffer_size must be at least 1"))
	}
	if c.Influx.Enabled {
		err = multierr.Append(err, c.Influx.validate())
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		err = multierr.Append(err, errors.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level))
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		err = multierr.Append(err, errors.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return err
}

func (s SimConfig) validate() error {
	var err error
	if len(s.Devices) == 0 {
		err = multierr.Append(err, errors.New("sim.devices must declare at least one device"))
	}
	seen := make(map[string]bool, len(s.Devices))
	for i, d := range s.Devices {
		if d.ID == "" {
			err = multierr.Append(err, errors.Errorf("sim.devices[%d].id is required", i))
			continue
		}
		if seen[d.ID] {
			err = multierr.Append(err, errors.Errorf("sim.devices[%d]: duplicate id %q", i, d.ID))
		}
		seen[d.ID] = true
		if _, e := d.Device(); e != nil {
			err = multierr.Append(err, errors.Wrapf(e, "sim.devices[%d]", i))
		}
	}
	if s.TriggerDelay < 0 {
		err = multierr.Append(err, errors.New("sim.trigger_delay must not be negative"))
	}
	return err
}

func (m MQTTConfig) validate() error {
	var err error
	if m.Broker == "" {
		err = multierr.Append(err, errors.New("mqtt.broker is required"))
	}
	if m.ClientID == "" {
		err = multierr.Append(err, errors.New("mqtt.client_id is required"))
	}
	if m.TopicPrefix == "" {
		err = multierr.Append(err, errors.New("mqtt.topic_prefix is required"))
	}
	if m.QoS < 0 || m.QoS > 2 {
		err = multierr.Append(err, errors.New("mqtt.qos must be 0, 1, or 2"))
	}
	return err
}

func (i InfluxConfig) validate() error {
	var err error
	if i.URL == "" {
		err = multierr.Append(err, errors.New("influx.url is required when influx is enabled"))
	}
	if i.Org == "" || i.Bucket == "" {
		err = multierr.Append(err, errors.New("influx.org and influx.bucket are required when influx is enabled"))
	}
	return err
}

// DeviceList converts the declared simulator devices.
func (s SimConfig) DeviceList() ([]sensor.Device, error) {
	devices := make([]sensor.Device, 0, len(s.Devices))
	for _, d := range s.Devices {
		dev, err := d.Device()
		if err != nil {
			return nil, err
		}
		devices = append(devices, dev)
	}
	return devices, nil
}
