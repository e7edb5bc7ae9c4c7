package stream

import (
	"context"

	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
)

// Future holds the single result of a one-shot registration.
//
// Exactly one of resolution and cancellation wins, however the registry
// callback and Cancel interleave. A new Future is needed for every event.
type Future[T any] struct {
	sub     *Subscription
	adapter string
	metrics *telemetry.Metrics

	// written once by the resolving goroutine before sub.done is closed
	val T
}

func newFuture[T any](adapter string, metrics *telemetry.Metrics) *Future[T] {
	return &Future[T]{
		sub:     newSubscription(adapter, metrics),
		adapter: adapter,
		metrics: metrics,
	}
}

// ID returns the subscription identifier.
func (f *Future[T]) ID() string { return f.sub.ID() }

// Subscription returns the handle owning the registry registration.
func (f *Future[T]) Subscription() *Subscription { return f.sub }

// Done is closed once the future has an outcome.
func (f *Future[T]) Done() <-chan struct{} { return f.sub.Done() }

// Err returns nil while pending or after success, ErrCancelled after
// cancellation, or the failure.
func (f *Future[T]) Err() error { return f.sub.Err() }

// Cancel withdraws a pending one-shot request. It returns false when the
// future already has an outcome.
func (f *Future[T]) Cancel() bool { return f.sub.Cancel() }

// Wait blocks until the future has an outcome or ctx is done. ctx only bounds
// the wait; it does not cancel the request.
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	var zero T
	select {
	case <-f.sub.Done():
	case <-ctx.Done():
		return zero, ctx.Err()
	}
	if err := f.sub.Err(); err != nil {
		return zero, err
	}
	return f.val, nil
}

// resolve is called from the registry callback.
func (f *Future[T]) resolve(v T) error {
	if f.sub.resolve(func() { f.val = v }) {
		return nil
	}
	switch f.sub.State() {
	case StateResolved:
		f.metrics.InvariantViolation(f.adapter)
		return ErrRegistrationRace
	case StateCancelled:
		f.metrics.Discarded(f.adapter)
		return ErrCancelled
	default:
		f.metrics.Discarded(f.adapter)
		<-f.sub.Done()
		return f.sub.Err()
	}
}
