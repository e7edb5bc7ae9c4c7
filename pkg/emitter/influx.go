package emitter

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/BYTE-6D65/sensorstream/pkg/config"
	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
)

// Measurement is the InfluxDB measurement readings are written to.
const Measurement = "sensor_reading"

const connectTimeout = 10 * time.Second

// pointWriter is the part of api.WriteAPI the emitter uses.
type pointWriter interface {
	WritePoint(p *write.Point)
	Flush()
}

// Influx writes readings to InfluxDB through the non-blocking write API.
// Write failures arrive asynchronously and are logged.
type Influx struct {
	bucket string
	client influxdb2.Client
	writer pointWriter
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

// ConnectInflux creates the client, checks the server with a ping, and starts
// the batching writer.
func ConnectInflux(cfg config.InfluxConfig, logger *zap.Logger) (*Influx, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(uint(cfg.FlushInterval.Milliseconds()))
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, errors.Wrapf(ErrNotConnected, "ping %s: %v", cfg.URL, err)
	}
	if !healthy {
		client.Close()
		return nil, errors.Wrapf(ErrNotConnected, "%s is not healthy", cfg.URL)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	go logWriteErrors(writeAPI, logger)

	e := newInflux(cfg.Bucket, writeAPI, logger)
	e.client = client
	return e, nil
}

func newInflux(bucket string, w pointWriter, logger *zap.Logger) *Influx {
	return &Influx{bucket: bucket, writer: w, logger: logger}
}

func logWriteErrors(w api.WriteAPI, logger *zap.Logger) {
	for err := range w.Errors() {
		logger.Warn("influx write failed", zap.Error(err))
	}
}

func (e *Influx) ID() string   { return "influx:" + e.bucket }
func (e *Influx) Type() string { return "influx" }

// Emit queues r as a point. It never blocks on the network.
func (e *Influx) Emit(_ context.Context, r sensor.Reading) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrClosed
	}
	e.writer.WritePoint(Point(r))
	return nil
}

// Close flushes pending points and closes the client.
func (e *Influx) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	e.writer.Flush()
	if e.client != nil {
		e.client.Close()
	}
	return nil
}

// Point converts a reading to an InfluxDB point: tags device_id and kind,
// fields v0..vN and accuracy.
func Point(r sensor.Reading) *write.Point {
	fields := make(map[string]interface{}, len(r.Values)+1)
	for i, v := range r.Values {
		fields[fmt.Sprintf("v%d", i)] = v
	}
	fields["accuracy"] = int(r.Accuracy)

	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return write.NewPoint(
		Measurement,
		map[string]string{
			"device_id": r.Device.ID,
			"kind":      r.Device.Kind.String(),
		},
		fields,
		ts,
	)
}
