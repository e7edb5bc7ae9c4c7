// Package clock supplies the monotonic time source registry bindings stamp
// readings with, and maps timestamps taken on remote devices onto it.
package clock

import (
	"sync"
	"time"
)

// MonoTime is a monotonic timestamp in nanoseconds since the clock's epoch.
type MonoTime int64

// Clock provides monotonic time and its wall-clock rendering.
type Clock interface {
	// Now returns the current monotonic time.
	Now() MonoTime

	// Since returns the duration elapsed since t.
	Since(t MonoTime) time.Duration

	// Wall converts t to wall-clock time.
	Wall(t MonoTime) time.Time
}

// ToDuration converts a MonoTime to a time.Duration.
func ToDuration(ns MonoTime) time.Duration {
	return time.Duration(ns)
}

// FromDuration converts a time.Duration to MonoTime.
func FromDuration(d time.Duration) MonoTime {
	return MonoTime(d.Nanoseconds())
}

// SystemClock uses the system's monotonic clock.
type SystemClock struct {
	epoch time.Time
}

// NewSystemClock creates a SystemClock anchored at the current time.
func NewSystemClock() *SystemClock {
	return &SystemClock{epoch: time.Now()}
}

// Now returns the time elapsed since the epoch.
func (s *SystemClock) Now() MonoTime {
	// time.Since uses the monotonic reading carried by epoch
	return FromDuration(time.Since(s.epoch))
}

// Since returns the duration elapsed since t.
func (s *SystemClock) Since(t MonoTime) time.Duration {
	return ToDuration(s.Now() - t)
}

// Wall returns the epoch advanced by t.
func (s *SystemClock) Wall(t MonoTime) time.Time {
	return s.epoch.Add(ToDuration(t))
}

// ManualClock only moves when told to. Simulations and tests use it for
// reproducible timestamps.
type ManualClock struct {
	mu    sync.RWMutex
	epoch time.Time
	now   MonoTime
}

// NewManualClock creates a ManualClock at zero whose wall time starts at epoch.
func NewManualClock(epoch time.Time) *ManualClock {
	return &ManualClock{epoch: epoch}
}

// Now returns the current manual time.
func (m *ManualClock) Now() MonoTime {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

// Since returns the manual time elapsed since t.
func (m *ManualClock) Since(t MonoTime) time.Duration {
	return ToDuration(m.Now() - t)
}

// Wall returns the epoch advanced by t.
func (m *ManualClock) Wall(t MonoTime) time.Time {
	return m.epoch.Add(ToDuration(t))
}

// Advance moves the clock forward by d. Negative durations are ignored.
func (m *ManualClock) Advance(d time.Duration) MonoTime {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now += FromDuration(d)
	}
	return m.now
}

// Set moves the clock to t if t is not in the past.
func (m *ManualClock) Set(t MonoTime) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t > m.now {
		m.now = t
	}
}
