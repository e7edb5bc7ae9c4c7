package stream

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/BYTE-6D65/sensorstream/pkg/statemachine"
	"github.com/BYTE-6D65/sensorstream/pkg/telemetry"
)

// Subscription lifecycle states.
const (
	StateArmed     statemachine.State = "armed"
	StateCancelled statemachine.State = "cancelled"
	StateFailed    statemachine.State = "failed"
	StateResolved  statemachine.State = "resolved"
)

const (
	eventCancel  statemachine.Event = "cancel"
	eventFail    statemachine.Event = "fail"
	eventResolve statemachine.Event = "resolve"
)

// Subscription owns exactly one registry-side registration.
//
// It leaves the armed state exactly once: by cancellation, by failure, or,
// for one-shot registrations, by resolution. Only cancellation runs the
// release func, and it runs it at most once.
type Subscription struct {
	id      string
	adapter string
	machine *statemachine.Machine
	metrics *telemetry.Metrics

	// onEnd closes the delivery side before the registration is released.
	onEnd func(err error)
	done  chan struct{}

	mu       sync.Mutex
	err      error
	ended    bool
	bound    bool
	release  func()
	stopWait func() bool
}

func newSubscription(adapter string, metrics *telemetry.Metrics) *Subscription {
	m := statemachine.NewMachine(StateArmed)
	for _, tr := range []statemachine.Transition{
		{From: StateArmed, To: StateCancelled, Event: eventCancel},
		{From: StateArmed, To: StateFailed, Event: eventFail},
		{From: StateArmed, To: StateResolved, Event: eventResolve},
	} {
		// transitions are distinct, AddTransition cannot fail here
		_ = m.AddTransition(tr)
	}

	return &Subscription{
		id:      uuid.New().String(),
		adapter: adapter,
		machine: m,
		metrics: metrics,
		done:    make(chan struct{}),
	}
}

// ID returns the unique identifier of this subscription.
func (s *Subscription) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Subscription) State() statemachine.State { return s.machine.Current() }

// Done is closed once the subscription has left the armed state.
func (s *Subscription) Done() <-chan struct{} { return s.done }

// Err returns the terminal error: nil while armed or after resolution,
// ErrCancelled after cancellation, or the failure.
func (s *Subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Cancel ends the subscription and releases its registration. It returns true
// only for the call that performed the cancellation.
func (s *Subscription) Cancel() bool {
	if err := s.machine.Trigger(eventCancel); err != nil {
		return false
	}
	s.end(ErrCancelled, true)
	return true
}

// fail ends an armed subscription with err. Nothing is released.
func (s *Subscription) fail(err error) bool {
	if e := s.machine.Trigger(eventFail); e != nil {
		return false
	}
	s.metrics.Failure(s.adapter, reason(err))
	s.end(err, false)
	return true
}

// resolve ends an armed subscription whose registration the registry
// consumed. commit runs only for the winning call, before Done is closed.
func (s *Subscription) resolve(commit func()) bool {
	if err := s.machine.Trigger(eventResolve); err != nil {
		return false
	}
	commit()
	s.end(nil, false)
	return true
}

// bind attaches the release func of a successful registration.
func (s *Subscription) bind(release func()) {
	s.mu.Lock()
	if s.ended {
		// resolved (or cancelled) while the registry call was in flight
		cancelled := s.err == ErrCancelled
		s.mu.Unlock()
		s.metrics.SubscriptionStarted(s.adapter)
		s.metrics.SubscriptionEnded(s.adapter)
		if cancelled {
			release()
		}
		return
	}
	s.bound = true
	s.release = release
	s.mu.Unlock()
	s.metrics.SubscriptionStarted(s.adapter)
}

// watch cancels the subscription when ctx is done.
func (s *Subscription) watch(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended {
		return
	}
	s.stopWait = context.AfterFunc(ctx, func() { s.Cancel() })
}

// end runs once, by the winner of the terminal transition.
func (s *Subscription) end(err error, runRelease bool) {
	s.mu.Lock()
	s.err = err
	s.ended = true
	release, bound, stopWait := s.release, s.bound, s.stopWait
	s.release, s.stopWait = nil, nil
	s.mu.Unlock()

	if s.onEnd != nil {
		s.onEnd(err)
	}
	if runRelease && release != nil {
		release()
	}
	if bound {
		s.metrics.SubscriptionEnded(s.adapter)
	}
	close(s.done)

	if stopWait != nil {
		stopWait()
	}
}
