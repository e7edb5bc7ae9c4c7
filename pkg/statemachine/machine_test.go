package statemachine

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

// lifecycle builds the armed -> {cancelled, resolved, failed} machine used by
// stream subscriptions.
func lifecycle(t *testing.T) *Machine {
	t.Helper()
	m := NewMachine("armed")
	for _, tr := range []Transition{
		{From: "armed", To: "cancelled", Event: "cancel"},
		{From: "armed", To: "resolved", Event: "resolve"},
		{From: "armed", To: "failed", Event: "fail"},
	} {
		if err := m.AddTransition(tr); err != nil {
			t.Fatalf("AddTransition failed: %v", err)
		}
	}
	return m
}

func TestNewMachine(t *testing.T) {
	m := NewMachine("armed")
	if m.Current() != "armed" {
		t.Errorf("Expected initial state 'armed', got %s", m.Current())
	}
	if err := m.Trigger("cancel"); !errors.Is(err, ErrNoTransition) {
		t.Errorf("Expected ErrNoTransition on an empty machine, got %v", err)
	}
}

func TestMachine_AddTransition_Duplicate(t *testing.T) {
	m := lifecycle(t)

	if err := m.AddTransition(Transition{From: "armed", To: "resolved", Event: "cancel"}); err == nil {
		t.Error("Expected error when adding duplicate transition")
	}
	// the original target is kept
	if err := m.Trigger("cancel"); err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if m.Current() != "cancelled" {
		t.Errorf("Expected state 'cancelled', got %s", m.Current())
	}
}

func TestMachine_TerminalStates(t *testing.T) {
	for _, first := range []Event{"cancel", "resolve", "fail"} {
		m := lifecycle(t)
		if err := m.Trigger(first); err != nil {
			t.Fatalf("Trigger %s failed: %v", first, err)
		}
		left := m.Current()

		for _, evt := range []Event{"cancel", "resolve", "fail"} {
			if err := m.Trigger(evt); !errors.Is(err, ErrNoTransition) {
				t.Errorf("Expected ErrNoTransition for %s out of %s, got %v", evt, left, err)
			}
		}
		if m.Current() != left {
			t.Errorf("Expected terminal state %s to stick, got %s", left, m.Current())
		}
	}
}

func TestMachine_Cycle(t *testing.T) {
	m := NewMachine("idle")
	m.AddTransition(Transition{From: "idle", To: "running", Event: "start"})
	m.AddTransition(Transition{From: "running", To: "idle", Event: "stop"})

	for i := 0; i < 3; i++ {
		if err := m.Trigger("start"); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := m.Trigger("start"); !errors.Is(err, ErrNoTransition) {
			t.Fatalf("Expected start to be refused while running, got %v", err)
		}
		if err := m.Trigger("stop"); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
	}
	if m.Current() != "idle" {
		t.Errorf("Expected 'idle', got %s", m.Current())
	}
}

func TestMachine_RacingEventsHaveOneWinner(t *testing.T) {
	for round := 0; round < 200; round++ {
		m := lifecycle(t)

		var winners atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for i := 0; i < 8; i++ {
			evt := Event("cancel")
			if i%2 == 1 {
				evt = "resolve"
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if m.Trigger(evt) == nil {
					winners.Add(1)
				}
				_ = m.Current()
			}()
		}
		close(start)
		wg.Wait()

		if got := winners.Load(); got != 1 {
			t.Fatalf("Round %d: expected exactly one winning transition, got %d", round, got)
		}
		if s := m.Current(); s != "cancelled" && s != "resolved" {
			t.Fatalf("Round %d: unexpected final state %s", round, s)
		}
	}
}
