// Package sensor defines the data model shared by registry bindings and stream adapters.
package sensor

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind selects which physical or logical device to observe.
type Kind int

// Well-known device kinds.
const (
	KindAccelerometer      Kind = 1
	KindMagneticField      Kind = 2
	KindOrientation        Kind = 3
	KindGyroscope          Kind = 4
	KindLight              Kind = 5
	KindPressure           Kind = 6
	KindProximity          Kind = 8
	KindGravity            Kind = 9
	KindLinearAcceleration Kind = 10
	KindRotationVector     Kind = 11
	KindRelativeHumidity   Kind = 12
	KindAmbientTemperature Kind = 13
	KindSignificantMotion  Kind = 17
	KindStepDetector       Kind = 18
	KindStepCounter        Kind = 19
	KindHeartRate          Kind = 21
)

var kindNames = map[Kind]string{
	KindAccelerometer:      "accelerometer",
	KindMagneticField:      "magnetic_field",
	KindOrientation:        "orientation",
	KindGyroscope:          "gyroscope",
	KindLight:              "light",
	KindPressure:           "pressure",
	KindProximity:          "proximity",
	KindGravity:            "gravity",
	KindLinearAcceleration: "linear_acceleration",
	KindRotationVector:     "rotation_vector",
	KindRelativeHumidity:   "relative_humidity",
	KindAmbientTemperature: "ambient_temperature",
	KindSignificantMotion:  "significant_motion",
	KindStepDetector:       "step_detector",
	KindStepCounter:        "step_counter",
	KindHeartRate:          "heart_rate",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts a kind name ("accelerometer") or its decimal number ("1").
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("sensor: unknown kind %q", s)
	}
	return Kind(n), nil
}

// Channels returns the number of values a reading of this kind carries.
func (k Kind) Channels() int {
	switch k {
	case KindAccelerometer, KindMagneticField, KindOrientation, KindGyroscope,
		KindGravity, KindLinearAcceleration:
		return 3
	case KindRotationVector:
		return 5
	default:
		return 1
	}
}

// IsTrigger reports whether the kind only supports one-shot requests.
func (k Kind) IsTrigger() bool {
	return k == KindSignificantMotion
}

// SamplingConfig is immutable once a stream is created.
type SamplingConfig struct {
	// Period is the desired delay between two consecutive readings.
	Period time.Duration `yaml:"period" json:"period"`

	// MaxLatency is how long readings may be batched before delivery.
	// Zero means deliver immediately.
	MaxLatency time.Duration `yaml:"max_latency" json:"max_latency"`
}

// Sampling presets.
var (
	SamplingFastest = SamplingConfig{}
	SamplingGame    = SamplingConfig{Period: 20 * time.Millisecond}
	SamplingUI      = SamplingConfig{Period: 66667 * time.Microsecond}
	SamplingNormal  = SamplingConfig{Period: 200 * time.Millisecond}
)

// Validate rejects negative durations.
func (c SamplingConfig) Validate() error {
	if c.Period < 0 {
		return fmt.Errorf("sensor: negative sampling period %v", c.Period)
	}
	if c.MaxLatency < 0 {
		return fmt.Errorf("sensor: negative max latency %v", c.MaxLatency)
	}
	return nil
}

// Device is a resolved handle to one sensing unit. It is owned by the
// registry and only borrowed for the duration of a registration.
type Device struct {
	ID      string `yaml:"id" json:"id"`
	Kind    Kind   `yaml:"kind" json:"kind"`
	Name    string `yaml:"name" json:"name"`
	Vendor  string `yaml:"vendor" json:"vendor,omitempty"`
	Dynamic bool   `yaml:"dynamic" json:"dynamic,omitempty"`
}

func (d Device) String() string {
	if d.Name == "" {
		return fmt.Sprintf("%s(%s)", d.Kind, d.ID)
	}
	return fmt.Sprintf("%s(%s %q)", d.Kind, d.ID, d.Name)
}

// Accuracy is the discrete confidence a device reports for its values.
type Accuracy int

// Accuracy levels.
const (
	AccuracyNoContact  Accuracy = -1
	AccuracyUnreliable Accuracy = 0
	AccuracyLow        Accuracy = 1
	AccuracyMedium     Accuracy = 2
	AccuracyHigh       Accuracy = 3
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyNoContact:
		return "NO_CONTACT"
	case AccuracyUnreliable:
		return "UNRELIABLE"
	case AccuracyLow:
		return "LOW"
	case AccuracyMedium:
		return "MEDIUM"
	case AccuracyHigh:
		return "HIGH"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", int(a))
	}
}

// Reading is one value-changed report from a device.
type Reading struct {
	Device    Device    `json:"device"`
	Values    []float64 `json:"values"`
	Accuracy  Accuracy  `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// AccuracyReading pairs a device with its new accuracy level.
type AccuracyReading struct {
	Device   Device   `json:"device"`
	Accuracy Accuracy `json:"accuracy"`
}

// TriggerEvent is the single report produced by a one-shot registration.
type TriggerEvent struct {
	Device    Device    `json:"device"`
	Values    []float64 `json:"values"`
	Timestamp time.Time `json:"timestamp"`
}

// Direction of a discovery event.
type Direction int

const (
	Connected Direction = iota
	Disconnected
)

func (d Direction) String() string {
	if d == Connected {
		return "connected"
	}
	return "disconnected"
}
