package button

import (
	"testing"
	"time"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func at(d time.Duration) time.Time { return t0.Add(d) }

func TestShortPressYieldsCycleSpeed(t *testing.T) {
	m := NewMachine()

	m.OnEdge(true, at(0))
	m.Poll(at(100 * time.Millisecond))
	m.OnEdge(false, at(200*time.Millisecond))

	if got := m.TakePendingAction(); got != CycleSpeed {
		t.Fatalf("action = %v, want CycleSpeed", got)
	}
	if got := m.TakePendingAction(); got != None {
		t.Errorf("second take = %v, want None", got)
	}
}

func TestLongPressYieldsToggleSpin(t *testing.T) {
	m := NewMachine()

	m.OnEdge(true, at(0))
	m.Poll(at(499 * time.Millisecond))
	if got := m.TakePendingAction(); got != None {
		t.Fatalf("action before threshold = %v, want None", got)
	}

	m.Poll(at(500 * time.Millisecond))
	if got := m.TakePendingAction(); got != ToggleSpin {
		t.Fatalf("action = %v, want ToggleSpin", got)
	}

	// The release after a long press must not produce a short-press
	// action: the falling edge lands in the debounce window.
	m.OnEdge(false, at(600*time.Millisecond))
	if got := m.TakePendingAction(); got != None {
		t.Errorf("action after release = %v, want None", got)
	}
}

func TestLongPressFiresOnlyOnce(t *testing.T) {
	m := NewMachine()

	m.OnEdge(true, at(0))
	m.Poll(at(500 * time.Millisecond))
	if got := m.TakePendingAction(); got != ToggleSpin {
		t.Fatalf("action = %v, want ToggleSpin", got)
	}

	// Still held well past the threshold; no second action.
	for d := 600; d <= 2000; d += 100 {
		m.Poll(at(time.Duration(d) * time.Millisecond))
	}
	if got := m.TakePendingAction(); got != None {
		t.Errorf("repeated polls produced %v, want None", got)
	}
}

func TestEdgesIgnoredWhileDebouncing(t *testing.T) {
	m := NewMachine()

	m.OnEdge(true, at(0))
	m.OnEdge(false, at(100*time.Millisecond))
	if got := m.TakePendingAction(); got != CycleSpeed {
		t.Fatalf("action = %v, want CycleSpeed", got)
	}

	// Bounce inside the 250ms window: no new press registered.
	m.OnEdge(true, at(150*time.Millisecond))
	m.OnEdge(false, at(160*time.Millisecond))
	if got := m.TakePendingAction(); got != None {
		t.Errorf("bounce produced %v, want None", got)
	}
	if got := m.CurrentPhase(); got != Debouncing {
		t.Errorf("phase = %v, want Debouncing", got)
	}
}

func TestDebounceExpiryReturnsToIdle(t *testing.T) {
	m := NewMachine()

	m.OnEdge(true, at(0))
	m.OnEdge(false, at(100*time.Millisecond))
	m.TakePendingAction()

	m.Poll(at(349 * time.Millisecond))
	if got := m.CurrentPhase(); got != Debouncing {
		t.Fatalf("phase = %v, want Debouncing", got)
	}
	m.Poll(at(351 * time.Millisecond))
	if got := m.CurrentPhase(); got != Idle {
		t.Fatalf("phase = %v, want Idle", got)
	}

	// A fresh press after the window works normally again.
	m.OnEdge(true, at(400*time.Millisecond))
	m.OnEdge(false, at(450*time.Millisecond))
	if got := m.TakePendingAction(); got != CycleSpeed {
		t.Errorf("action = %v, want CycleSpeed", got)
	}
}

func TestMailboxHoldsSingleAction(t *testing.T) {
	m := NewMachine()

	// Two full press cycles without draining: last write wins, one slot.
	m.OnEdge(true, at(0))
	m.OnEdge(false, at(100*time.Millisecond))
	m.Poll(at(400 * time.Millisecond)) // debounce over
	m.OnEdge(true, at(500*time.Millisecond))
	m.OnEdge(false, at(600*time.Millisecond))

	if got := m.TakePendingAction(); got != CycleSpeed {
		t.Fatalf("action = %v, want CycleSpeed", got)
	}
	if got := m.TakePendingAction(); got != None {
		t.Errorf("mailbox held more than one action: %v", got)
	}
}
