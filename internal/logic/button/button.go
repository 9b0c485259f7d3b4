package button

import (
	"sync/atomic"
	"time"
)

// Action is a high-level result of one physical press/release cycle.
type Action int32

const (
	None Action = iota
	CycleSpeed
	ToggleSpin
)

func (a Action) String() string {
	switch a {
	case CycleSpeed:
		return "cycle_speed"
	case ToggleSpin:
		return "toggle_spin"
	default:
		return "none"
	}
}

// Phase of the press/release cycle.
type Phase int32

const (
	Idle Phase = iota
	Held
	Debouncing
)

const (
	debounceWindow = 250 * time.Millisecond
	longPressAfter = 500 * time.Millisecond
)

// Machine turns noisy button edges plus durations into exactly one
// action per physical interaction. OnEdge runs on the edge watcher
// goroutine and never blocks or takes a lock; Poll and
// TakePendingAction run on the control loop. All fields are atomics,
// so the edge path's latency is independent of any lock contention.
type Machine struct {
	phase            atomic.Int32
	pressStartedAt   atomic.Int64 // unix nanos, valid while phase == Held
	longPressFired   atomic.Bool
	pending          atomic.Int32 // single-slot mailbox, last write wins
	debounceDeadline atomic.Int64 // unix nanos
}

// NewMachine creates a machine in the Idle phase.
func NewMachine() *Machine {
	return &Machine{}
}

// OnEdge records a level change. Edges arriving during the debounce
// window are ignored.
func (m *Machine) OnEdge(pressed bool, now time.Time) {
	if Phase(m.phase.Load()) == Debouncing {
		return
	}

	if pressed {
		if Phase(m.phase.Load()) != Held {
			m.longPressFired.Store(false)
			m.pressStartedAt.Store(now.UnixNano())
			m.phase.Store(int32(Held))
		}
		return
	}

	if Phase(m.phase.Load()) != Held {
		return
	}
	if m.longPressFired.Load() {
		m.phase.Store(int32(Idle))
		return
	}
	// Short press: one action, then a refractory window.
	m.pending.Store(int32(CycleSpeed))
	m.debounceDeadline.Store(now.Add(debounceWindow).UnixNano())
	m.phase.Store(int32(Debouncing))
}

// Poll advances time-driven transitions. Called once per control loop
// iteration. A hold crossing the long-press threshold fires ToggleSpin
// and overrides any action the same hold would have produced.
func (m *Machine) Poll(now time.Time) {
	switch Phase(m.phase.Load()) {
	case Debouncing:
		if now.UnixNano() >= m.debounceDeadline.Load() {
			m.phase.Store(int32(Idle))
		}
	case Held:
		if !m.longPressFired.Load() &&
			now.Sub(time.Unix(0, m.pressStartedAt.Load())) >= longPressAfter {
			m.longPressFired.Store(true)
			m.pending.Store(int32(ToggleSpin))
			m.debounceDeadline.Store(now.Add(debounceWindow).UnixNano())
			m.phase.Store(int32(Debouncing))
		}
	}
}

// TakePendingAction atomically drains the action mailbox.
// Returns None when empty.
func (m *Machine) TakePendingAction() Action {
	return Action(m.pending.Swap(int32(None)))
}

// CurrentPhase reports the phase (for tests and diagnostics).
func (m *Machine) CurrentPhase() Phase {
	return Phase(m.phase.Load())
}
