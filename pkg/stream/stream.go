package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/BYTE-6D65/sensorstream/pkg/sensor"
	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
)

// Stream delivers values pushed by registry callbacks to a consumer.
//
// Producers never block. What happens when the consumer lags depends on the
// buffer policy the adapter chose: continuous streams keep only the most
// recent values, discovery streams keep everything in order.
type Stream[T any] struct {
	sub     *Subscription
	adapter string
	metrics *telemetry.Metrics

	mu     sync.Mutex
	q      queue[T]
	closed bool
	err    error
	notify chan struct{}

	dropped atomic.Uint64
}

func newStream[T any](adapter string, q queue[T], metrics *telemetry.Metrics) *Stream[T] {
	s := &Stream[T]{
		sub:     newSubscription(adapter, metrics),
		adapter: adapter,
		metrics: metrics,
		q:       q,
		notify:  make(chan struct{}, 1),
	}
	s.sub.onEnd = s.closeDelivery
	return s
}

// ID returns the subscription identifier.
func (s *Stream[T]) ID() string { return s.sub.ID() }

// Subscription returns the handle owning the registry registration.
func (s *Stream[T]) Subscription() *Subscription { return s.sub }

// Done is closed when the stream reaches a terminal state.
func (s *Stream[T]) Done() <-chan struct{} { return s.sub.Done() }

// Err returns the terminal error, or nil while the stream is live.
func (s *Stream[T]) Err() error { return s.sub.Err() }

// Dropped returns how many values were discarded in favour of newer ones.
func (s *Stream[T]) Dropped() uint64 { return s.dropped.Load() }

// Close cancels the stream. It is safe to call multiple times and from
// multiple goroutines; the registration is released once.
func (s *Stream[T]) Close() error {
	s.sub.Cancel()
	return nil
}

// Recv returns the next value. It blocks until a value is available, the
// stream terminates, or ctx is done. After cancellation it returns
// ErrCancelled; after a failure it returns the failure.
func (s *Stream[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		s.mu.Lock()
		if s.closed {
			err := s.err
			s.mu.Unlock()
			return zero, err
		}
		v, ok := s.q.pop()
		more := s.q.len() > 0
		s.mu.Unlock()

		if ok {
			if more {
				s.signal()
			}
			s.metrics.Delivered(s.adapter)
			return v, nil
		}

		select {
		case <-s.notify:
		case <-s.sub.Done():
		case <-ctx.Done():
			return zero, ctx.Err()
		}
	}
}

// Each calls fn for every value until the stream terminates. It returns nil
// when the stream was cancelled. An error from fn cancels the stream and is
// returned as is.
func (s *Stream[T]) Each(ctx context.Context, fn func(T) error) error {
	for {
		v, err := s.Recv(ctx)
		if err != nil {
			if errors.Is(err, ErrCancelled) {
				return nil
			}
			return err
		}
		if err := fn(v); err != nil {
			s.Close()
			return err
		}
	}
}

// push is called from producer goroutines.
func (s *Stream[T]) push(v T) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.metrics.Discarded(s.adapter)
		return
	}
	dropped := s.q.push(v)
	s.mu.Unlock()

	if dropped {
		s.dropped.Add(1)
		s.metrics.Dropped(s.adapter)
	}
	s.signal()
}

func (s *Stream[T]) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// closeDelivery makes the terminal error visible and forgets pending values.
func (s *Stream[T]) closeDelivery(err error) {
	s.mu.Lock()
	s.closed = true
	s.err = err
	s.q.reset()
	s.mu.Unlock()
}

// listener is the single Listener implementation used by every adapter. It
// maps registry events to stream values and ignores the variants it does not
// care about.
type listener[T any] struct {
	id    string
	mapFn func(sensor.Event) (T, bool)
	sink  func(T)
}

func newListener[T any](id string, mapFn func(sensor.Event) (T, bool), sink func(T)) *listener[T] {
	return &listener[T]{id: id, mapFn: mapFn, sink: sink}
}

func (l *listener[T]) ID() string { return l.id }

func (l *listener[T]) Notify(evt sensor.Event) {
	if v, ok := l.mapFn(evt); ok {
		l.sink(v)
	}
}
