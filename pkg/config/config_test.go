package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/multierr"
	"go.viam.com/test"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sensorstream.yaml")
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
registry: sim
sampling:
  period: 20ms
  max_latency: 100ms
buffer_size: 4
sim:
  discovery: false
  trigger_delay: 500ms
  seed: 7
  devices:
    - id: acc
      kind: accelerometer
      name: Test Accel
    - id: hr
      kind: "21"
logging:
  level: debug
  format: json
metrics:
  listen: ":9100"
`)

	cfg, err := Load(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.Sampling, test.ShouldResemble, sensor.SamplingConfig{Period: 20 * time.Millisecond, MaxLatency: 100 * time.Millisecond})
	test.That(t, cfg.BufferSize, test.ShouldEqual, 4)
	test.That(t, cfg.Sim.Discovery, test.ShouldBeFalse)
	test.That(t, cfg.Sim.TriggerDelay, test.ShouldEqual, 500*time.Millisecond)
	test.That(t, cfg.Metrics.Listen, test.ShouldEqual, ":9100")

	devices, err := cfg.Sim.DeviceList()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, devices, test.ShouldHaveLength, 2)
	test.That(t, devices[0].Kind, test.ShouldEqual, sensor.KindAccelerometer)
	test.That(t, devices[1].Kind, test.ShouldEqual, sensor.KindHeartRate)

	// sections absent from the file keep their defaults
	test.That(t, cfg.MQTT.TopicPrefix, test.ShouldEqual, "sensorstream")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/sensorstream.yaml")
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "reading config file")
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "registry: [sim"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "parsing config file")
}

func TestLoadValidationFailure(t *testing.T) {
	_, err := Load(writeConfig(t, "registry: bluetooth\n"))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "validating config")
}

func TestDefaultIsValid(t *testing.T) {
	test.That(t, Default().Validate(), test.ShouldBeNil)
}

func TestValidateReportsEveryProblem(t *testing.T) {
	cfg := Default()
	cfg.Registry = RegistryMQTT
	cfg.MQTT.Broker = ""
	cfg.MQTT.QoS = 3
	cfg.BufferSize = 0
	cfg.Sampling.Period = -time.Second
	cfg.Logging.Level = "trace"

	err := cfg.Validate()
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, multierr.Errors(err), test.ShouldHaveLength, 5)
}

func TestValidateSimDevices(t *testing.T) {
	cfg := Default()
	cfg.Sim.Devices = []DeviceConfig{
		{ID: "a", Kind: "accelerometer"},
		{ID: "a", Kind: "gyroscope"},
		{ID: "", Kind: "light"},
		{ID: "b", Kind: "warp_drive"},
	}

	errs := multierr.Errors(cfg.Validate())
	test.That(t, errs, test.ShouldHaveLength, 3)
}

func TestValidateInfluxOnlyWhenEnabled(t *testing.T) {
	cfg := Default()
	cfg.Influx.Org = ""
	test.That(t, cfg.Validate(), test.ShouldBeNil)

	cfg.Influx.Enabled = true
	test.That(t, cfg.Validate(), test.ShouldNotBeNil)

	cfg.Influx.Org = "lab"
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}

func TestLoadFromEnv(t *testing.T) {
	cfg := Default()

	t.Setenv("SENSORSTREAM_REGISTRY", "mqtt")
	t.Setenv("SENSORSTREAM_SAMPLING_PERIOD", "5ms")
	t.Setenv("SENSORSTREAM_BUFFER_SIZE", "64")
	t.Setenv("SENSORSTREAM_SIM_DISCOVERY", "false")
	t.Setenv("SENSORSTREAM_MQTT_BROKER", "tcp://broker.example.com:1883")
	t.Setenv("SENSORSTREAM_MQTT_USERNAME", "user")
	t.Setenv("SENSORSTREAM_MQTT_PASSWORD", "pass")
	t.Setenv("SENSORSTREAM_INFLUX_TOKEN", "secret-token")
	t.Setenv("SENSORSTREAM_LOG_LEVEL", "warn")
	t.Setenv("SENSORSTREAM_METRICS_LISTEN", "127.0.0.1:9000")

	LoadFromEnv(cfg)

	test.That(t, cfg.Registry, test.ShouldEqual, RegistryMQTT)
	test.That(t, cfg.Sampling.Period, test.ShouldEqual, 5*time.Millisecond)
	test.That(t, cfg.BufferSize, test.ShouldEqual, 64)
	test.That(t, cfg.Sim.Discovery, test.ShouldBeFalse)
	test.That(t, cfg.MQTT.Broker, test.ShouldEqual, "tcp://broker.example.com:1883")
	test.That(t, cfg.MQTT.Username, test.ShouldEqual, "user")
	test.That(t, cfg.MQTT.Password, test.ShouldEqual, "pass")
	test.That(t, cfg.Influx.Token, test.ShouldEqual, "secret-token")
	test.That(t, cfg.Logging.Level, test.ShouldEqual, "warn")
	test.That(t, cfg.Metrics.Listen, test.ShouldEqual, "127.0.0.1:9000")
}

func TestLoadFromEnvIgnoresInvalidValues(t *testing.T) {
	cfg := Default()
	t.Setenv("SENSORSTREAM_BUFFER_SIZE", "-3")
	t.Setenv("SENSORSTREAM_SAMPLING_PERIOD", "soon")

	LoadFromEnv(cfg)

	test.That(t, cfg.BufferSize, test.ShouldEqual, 16)
	test.That(t, cfg.Sampling, test.ShouldResemble, sensor.SamplingUI)
}
