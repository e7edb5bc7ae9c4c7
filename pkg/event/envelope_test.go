package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

type readingPayload struct {
	Values   []float64 `json:"values"`
	Accuracy int       `json:"accuracy"`
}

func TestNew(t *testing.T) {
	codec := JSONCodec{}
	payload := readingPayload{Values: []float64{1, 2, 3}, Accuracy: 3}

	env, err := New(TypeReading, "gw-1", "accel-0", payload, codec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if env.ID == "" {
		t.Error("Envelope ID should not be empty")
	}
	if env.Type != TypeReading {
		t.Errorf("Expected type %q, got %q", TypeReading, env.Type)
	}
	if env.Source != "gw-1" || env.DeviceID != "accel-0" {
		t.Errorf("Unexpected source/device: %q/%q", env.Source, env.DeviceID)
	}
	if time.Since(env.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
	if len(env.Data) == 0 {
		t.Error("Envelope data should not be empty")
	}
}

func TestEnvelope_DecodePayload(t *testing.T) {
	codec := JSONCodec{}
	original := readingPayload{Values: []float64{0.5, -9.81}, Accuracy: 2}

	env, err := New(TypeReading, "gw-1", "accel-0", original, codec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var decoded readingPayload
	if err := env.DecodePayload(&decoded, codec); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if len(decoded.Values) != 2 || decoded.Values[1] != -9.81 || decoded.Accuracy != 2 {
		t.Errorf("Payload mismatch: %+v", decoded)
	}
}

func TestEnvelope_DecodePayload_EmptyData(t *testing.T) {
	env := &Envelope{ID: "id", Type: TypeTrigger}

	decoded := readingPayload{Accuracy: 7}
	if err := env.DecodePayload(&decoded, JSONCodec{}); err != nil {
		t.Errorf("DecodePayload with nil data should not error: %v", err)
	}
	if decoded.Accuracy != 7 {
		t.Error("Empty payload should leave the target untouched")
	}
}

func TestEnvelope_Builders(t *testing.T) {
	env := &Envelope{ID: "id"}
	env.WithMetadata("fw", "1.2").WithMetadata("site", "lab").WithDeviceTime(12345)

	if env.Metadata["fw"] != "1.2" || env.Metadata["site"] != "lab" {
		t.Errorf("Metadata not set: %v", env.Metadata)
	}
	if env.DeviceTime != 12345 {
		t.Errorf("Expected device time 12345, got %d", env.DeviceTime)
	}
}

func TestEncode_EmbedsPayloadVerbatim(t *testing.T) {
	codec := JSONCodec{}
	env, err := New(TypeAccuracy, "gw-1", "mag-0", map[string]int{"accuracy": 1}, codec)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	data, err := Encode(env, codec)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if !strings.Contains(string(data), `"data":{"accuracy":1}`) {
		t.Errorf("Expected inline payload, got %s", data)
	}

	// Readable by any JSON implementation
	var generic map[string]any
	if err := json.Unmarshal(data, &generic); err != nil {
		t.Fatalf("Encoded envelope is not valid JSON: %v", err)
	}
	if generic["device_id"] != "mag-0" {
		t.Errorf("Unexpected device_id %v", generic["device_id"])
	}
}

func TestDecode(t *testing.T) {
	raw := []byte(`{
		"id": "abc",
		"type": "sensor.reading",
		"source": "esp32",
		"device_id": "accel-0",
		"timestamp": "2024-05-01T10:00:00Z",
		"device_time": 987654321,
		"data": {"values": [1, 2, 3], "accuracy": 3},
		"extra": "ignored"
	}`)

	env, err := Decode(raw, JSONCodec{})
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if env.ID != "abc" || env.Type != TypeReading || env.DeviceID != "accel-0" {
		t.Errorf("Header mismatch: %+v", env)
	}
	if env.DeviceTime != 987654321 {
		t.Errorf("Expected device time, got %d", env.DeviceTime)
	}
	if !env.Timestamp.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Unexpected timestamp %v", env.Timestamp)
	}

	var p readingPayload
	if err := env.DecodePayload(&p, JSONCodec{}); err != nil {
		t.Fatalf("DecodePayload failed: %v", err)
	}
	if len(p.Values) != 3 || p.Accuracy != 3 {
		t.Errorf("Payload mismatch: %+v", p)
	}
}

func TestDecode_Invalid(t *testing.T) {
	if _, err := Decode([]byte(`{"id":`), JSONCodec{}); err == nil {
		t.Error("Expected error for truncated JSON")
	}
}

func TestNew_MarshalError(t *testing.T) {
	if _, err := New(TypeReading, "s", "d", make(chan int), JSONCodec{}); err == nil {
		t.Error("Expected error when marshaling invalid payload")
	}
}
