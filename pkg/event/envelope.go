// Package event defines the envelope sensor messages travel in over the wire
// and the codec used for their payloads.
package event

import (
	"time"

	"github.com/go-json-experiment/json"
	"github.com/go-json-experiment/json/jsontext"
	"github.com/google/uuid"
)

// Envelope types.
const (
	TypeReading  = "sensor.reading"
	TypeAccuracy = "sensor.accuracy"
	TypeTrigger  = "sensor.trigger"
)

// Envelope is a payload-agnostic message carrying one device report.
type Envelope struct {
	// ID is a unique identifier for this message
	ID string `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	// Source identifies the publisher (a gateway, a firmware build)
	Source string `json:"source"`

	// DeviceID is the registry identifier of the reporting device
	DeviceID string `json:"device_id"`

	// Timestamp is the publisher's wall clock when the message was built
	Timestamp time.Time `json:"timestamp"`

	// DeviceTime is the device's own clock in nanoseconds, if it has one.
	// Receivers map it onto their local clock.
	DeviceTime int64 `json:"device_time,omitempty"`

	// Data is the JSON payload, embedded verbatim
	Data jsontext.Value `json:"data,omitempty"`

	// Metadata provides additional context for filtering and debugging
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Codec serializes envelopes and their payloads.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONCodec implements Codec with go-json-experiment.
type JSONCodec struct{}

// Marshal converts a value to JSON bytes.
func (JSONCodec) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal deserializes JSON bytes. Unknown fields are ignored.
func (JSONCodec) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// New creates an envelope with a generated ID and the current time.
func New(typ, source, deviceID string, payload any, codec Codec) (*Envelope, error) {
	data, err := codec.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		ID:        uuid.New().String(),
		Type:      typ,
		Source:    source,
		DeviceID:  deviceID,
		Timestamp: time.Now(),
		Data:      data,
	}, nil
}

// WithMetadata adds a metadata key-value pair.
func (e *Envelope) WithMetadata(key, value string) *Envelope {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// WithDeviceTime sets the device clock reading.
func (e *Envelope) WithDeviceTime(ns int64) *Envelope {
	e.DeviceTime = ns
	return e
}

// DecodePayload deserializes the envelope data into v. An empty payload
// leaves v untouched.
func (e *Envelope) DecodePayload(v any, codec Codec) error {
	if len(e.Data) == 0 {
		return nil
	}
	return codec.Unmarshal(e.Data, v)
}

// Encode serializes e.
func Encode(e *Envelope, codec Codec) ([]byte, error) {
	return codec.Marshal(e)
}

// Decode parses an envelope.
func Decode(data []byte, codec Codec) (*Envelope, error) {
	var e Envelope
	if err := codec.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
