package emitter

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/go-json-experiment/json"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Record is the JSON-lines representation of a reading.
type Record struct {
	DeviceID  string    `json:"device_id"`
	Kind      string    `json:"kind"`
	Values    []float64 `json:"values"`
	Accuracy  string    `json:"accuracy"`
	Timestamp time.Time `json:"timestamp"`
}

// NewRecord flattens r.
func NewRecord(r sensor.Reading) Record {
	return Record{
		DeviceID:  r.Device.ID,
		Kind:      r.Device.Kind.String(),
		Values:    r.Values,
		Accuracy:  r.Accuracy.String(),
		Timestamp: r.Timestamp,
	}
}

// JSONLines writes one JSON object per reading.
type JSONLines struct {
	name string

	mu     sync.Mutex
	w      io.Writer
	closed bool
}

// NewJSONLines writes to w. If w is an io.Closer it is closed with the
// emitter.
func NewJSONLines(name string, w io.Writer) *JSONLines {
	return &JSONLines{name: name, w: w}
}

func (j *JSONLines) ID() string   { return "jsonl:" + j.name }
func (j *JSONLines) Type() string { return "jsonl" }

// Emit writes r as a single line.
func (j *JSONLines) Emit(_ context.Context, r sensor.Reading) error {
	line, err := json.Marshal(NewRecord(r))
	if err != nil {
		return err
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}
	_, err = j.w.Write(line)
	return err
}

// Close closes the underlying writer when it is closable.
func (j *JSONLines) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	if c, ok := j.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
