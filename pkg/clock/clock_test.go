package clock

import (
	"testing"
	"time"
)

func TestMonoTime_Conversions(t *testing.T) {
	d := 100 * time.Millisecond
	mono := FromDuration(d)
	back := ToDuration(mono)

	if back != d {
		t.Errorf("Round-trip conversion failed: %v -> %v -> %v", d, mono, back)
	}
}

func TestSystemClock_Now(t *testing.T) {
	clk := NewSystemClock()

	t1 := clk.Now()
	time.Sleep(10 * time.Millisecond)
	t2 := clk.Now()

	if t2 <= t1 {
		t.Error("Clock should advance monotonically")
	}

	elapsed := t2 - t1
	if elapsed < FromDuration(10*time.Millisecond) {
		t.Errorf("Expected at least 10ms elapsed, got %v", ToDuration(elapsed))
	}
}

func TestSystemClock_Since(t *testing.T) {
	clk := NewSystemClock()

	start := clk.Now()
	time.Sleep(20 * time.Millisecond)
	elapsed := clk.Since(start)

	if elapsed < 20*time.Millisecond {
		t.Errorf("Expected at least 20ms, got %v", elapsed)
	}
}

func TestSystemClock_MonotonicBehavior(t *testing.T) {
	clk := NewSystemClock()

	const iterations = 1000
	timestamps := make([]MonoTime, iterations)
	for i := 0; i < iterations; i++ {
		timestamps[i] = clk.Now()
	}

	for i := 1; i < len(timestamps); i++ {
		if timestamps[i] < timestamps[i-1] {
			t.Errorf("Non-monotonic at index %d: %d -> %d",
				i, timestamps[i-1], timestamps[i])
		}
	}
}

func TestSystemClock_Wall(t *testing.T) {
	before := time.Now()
	clk := NewSystemClock()
	time.Sleep(5 * time.Millisecond)
	wall := clk.Wall(clk.Now())
	after := time.Now()

	if wall.Before(before) || wall.After(after) {
		t.Errorf("Wall time %v outside [%v, %v]", wall, before, after)
	}
}

func TestManualClock(t *testing.T) {
	epoch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewManualClock(epoch)

	if clk.Now() != 0 {
		t.Fatalf("Expected manual clock to start at 0, got %d", clk.Now())
	}

	start := clk.Now()
	clk.Advance(250 * time.Millisecond)
	if clk.Since(start) != 250*time.Millisecond {
		t.Errorf("Expected 250ms elapsed, got %v", clk.Since(start))
	}

	if got := clk.Wall(clk.Now()); !got.Equal(epoch.Add(250 * time.Millisecond)) {
		t.Errorf("Unexpected wall time %v", got)
	}

	// Never moves backwards
	clk.Advance(-time.Second)
	clk.Set(FromDuration(100 * time.Millisecond))
	if clk.Now() != FromDuration(250*time.Millisecond) {
		t.Errorf("Manual clock moved backwards to %v", ToDuration(clk.Now()))
	}

	clk.Set(FromDuration(time.Second))
	if clk.Now() != FromDuration(time.Second) {
		t.Errorf("Expected Set to move the clock to 1s, got %v", ToDuration(clk.Now()))
	}
}
