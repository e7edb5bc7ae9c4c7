package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/stream"
)

const feedSize = 256

type readingMsg struct {
	kind    sensor.Kind
	reading sensor.Reading
}

type accuracyMsg struct {
	kind     sensor.Kind
	accuracy sensor.Accuracy
}

// streamEndMsg reports a stream that stopped delivering.
type streamEndMsg struct {
	name string
	kind sensor.Kind
	err  error
}

type discoveryMsg struct {
	device    sensor.Device
	direction sensor.Direction
}

type triggerMsg struct {
	event sensor.TriggerEvent
	err   error
}

type logMsg string

// feed carries stream output into the bubbletea update loop. Update
// re-issues wait after every message it takes from the feed.
type feed chan tea.Msg

func newFeed() feed { return make(feed, feedSize) }

func (f feed) wait() tea.Cmd {
	return func() tea.Msg { return <-f }
}

func (f feed) send(ctx context.Context, msg tea.Msg) bool {
	select {
	case f <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

// Write implements io.Writer so zap can log into the dashboard. Lines are
// dropped while the feed is full.
func (f feed) Write(p []byte) (int, error) {
	select {
	case f <- logMsg(p):
	default:
	}
	return len(p), nil
}

func (f feed) Sync() error { return nil }

// forward moves every value of s into the feed until the stream ends.
func forward[T any](ctx context.Context, f feed, s *stream.Stream[T], wrap func(T) tea.Msg, end func(error) tea.Msg) {
	for {
		v, err := s.Recv(ctx)
		if err != nil {
			if ctx.Err() == nil {
				f.send(ctx, end(err))
			}
			return
		}
		if !f.send(ctx, wrap(v)) {
			return
		}
	}
}

// watchKind starts the reading and accuracy streams of kind.
func watchKind(ctx context.Context, f feed, m *stream.Manager, kind sensor.Kind, cfg sensor.SamplingConfig) {
	readings := m.Observe(ctx, kind, cfg)
	go forward(ctx, f, readings,
		func(r sensor.Reading) tea.Msg { return readingMsg{kind: kind, reading: r} },
		func(err error) tea.Msg { return streamEndMsg{name: "readings", kind: kind, err: err} })

	accuracy := m.ObserveAccuracy(ctx, kind, cfg)
	go forward(ctx, f, accuracy,
		func(a sensor.AccuracyReading) tea.Msg { return accuracyMsg{kind: kind, accuracy: a.Accuracy} },
		func(err error) tea.Msg { return streamEndMsg{name: "accuracy", kind: kind, err: err} })
}

// watchDiscovery starts the connection and disconnection streams.
func watchDiscovery(ctx context.Context, f feed, m *stream.Manager) {
	for _, s := range []struct {
		name string
		dir  sensor.Direction
		s    *stream.Stream[sensor.Device]
	}{
		{"connections", sensor.Connected, m.ObserveConnections(ctx)},
		{"disconnections", sensor.Disconnected, m.ObserveDisconnections(ctx)},
	} {
		dir, name := s.dir, s.name
		go forward(ctx, f, s.s,
			func(d sensor.Device) tea.Msg { return discoveryMsg{device: d, direction: dir} },
			func(err error) tea.Msg { return streamEndMsg{name: name, err: err} })
	}
}
