package mqttbridge

import (
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Announcement is the retained payload on a device topic. Kind accepts a
// kind name or number as a string.
type Announcement struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name,omitempty"`
	Vendor  string `json:"vendor,omitempty"`
	Dynamic bool   `json:"dynamic,omitempty"`
	Online  bool   `json:"online"`
}

// ReadingPayload is carried by reading envelopes. A missing accuracy means
// HIGH.
type ReadingPayload struct {
	Values   []float64        `json:"values"`
	Accuracy *sensor.Accuracy `json:"accuracy,omitempty"`
}

// AccuracyPayload is carried by accuracy envelopes.
type AccuracyPayload struct {
	Accuracy sensor.Accuracy `json:"accuracy"`
}

// TriggerPayload is carried by trigger envelopes.
type TriggerPayload struct {
	Values []float64 `json:"values"`
}

// Control tells a device what its listeners currently need. Devices stop
// publishing readings while Active is false.
type Control struct {
	Active       bool  `json:"active"`
	PeriodMS     int64 `json:"period_ms"`
	MaxLatencyMS int64 `json:"max_latency_ms"`
}

// Status is the bridge's retained presence message.
type Status struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
}
