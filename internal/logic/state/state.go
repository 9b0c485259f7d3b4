package state

import (
	"sync"

	"turntable/internal/hw/camera"
)

// Mode is the externally visible operating mode.
type Mode string

const (
	Idle     Mode = "IDLE"
	Spin     Mode = "SPIN"
	Picture  Mode = "PICTURE"
	Sequence Mode = "SEQUENCE"
)

// SubState is the photo-sequence phase. Meaningful only while the
// mode is Sequence; reset whenever the mode transitions away from it.
type SubState int

const (
	SubDone SubState = iota
	SubTrigger
	SubRotate
)

// Params holds the mode-specific parameters.
type Params struct {
	SpeedMs   int // step interval, milliseconds
	DegPerPos int // degrees between sequence captures
	DelayMs   int // pause after each sequence capture
}

// Progress tracks a running photo sequence.
type Progress struct {
	CurrentStep      int
	TotalSteps       int
	StepsPerRotation int
	StepsRemaining   int // motor steps left in the current rotation
}

// Status is the immutable payload pushed to remote listeners.
type Status struct {
	Message     string      `json:"message"`
	Mode        Mode        `json:"mode"`
	Speed       int         `json:"speed"`
	TriggerMode camera.Mode `json:"trigger_mode"`
}

// Operation is the single authoritative record of what the device is
// doing. Every field is guarded by one mutex; critical sections stay
// short and never sleep or do I/O. Created once at startup, lives for
// the process lifetime. The button edge path never touches it.
type Operation struct {
	mu       sync.Mutex
	mode     Mode
	sub      SubState
	params   Params
	progress Progress
	message  string
	trigger  camera.Mode
	speeds   *SpeedTable
}

// NewOperation creates the shared state in Idle with the given speed
// table and default trigger mode.
func NewOperation(speeds *SpeedTable, trigger camera.Mode) *Operation {
	return &Operation{
		mode:    Idle,
		sub:     SubDone,
		message: "Ready",
		trigger: trigger,
		speeds:  speeds,
	}
}

// setMode applies the mode-transition invariant: leaving Sequence
// discards sub-state and progress. Caller must hold the lock.
func (o *Operation) setMode(m Mode) {
	o.mode = m
	if m != Sequence {
		o.sub = SubDone
		o.progress = Progress{}
	}
}

// Mode returns the current operating mode.
func (o *Operation) Mode() Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode
}

// RotationActive reports whether the current rotation should keep
// stepping: the mode is still Sequence and the Rotate phase has not
// been replaced by a stop or a fresh run. Used by the control loop's
// per-step abort check.
func (o *Operation) RotationActive() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode == Sequence && o.sub == SubRotate
}

// ModeAndTableSpeed returns the mode together with the speed table's
// current entry, read under a single lock acquisition.
func (o *Operation) ModeAndTableSpeed() (Mode, int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mode, o.speeds.Current()
}

// Message returns the status text.
func (o *Operation) Message() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.message
}

// SetMessage replaces the status text.
func (o *Operation) SetMessage(msg string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.message = msg
}

// TriggerMode returns the selected shutter transport.
func (o *Operation) TriggerMode() camera.Mode {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.trigger
}

// SetTriggerMode selects the shutter transport.
func (o *Operation) SetTriggerMode(m camera.Mode) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.trigger = m
}

// StartSpin enters Spin at the given step interval and syncs the
// speed table index when the interval matches a table entry.
func (o *Operation) StartSpin(speedMs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.speeds.Sync(speedMs)
	o.setMode(Spin)
	o.params = Params{SpeedMs: speedMs}
}

// SetSpeed updates the spin step interval. Effective only while
// spinning; syncs the table index on a match.
func (o *Operation) SetSpeed(speedMs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode != Spin {
		return
	}
	o.params.SpeedMs = speedMs
	o.speeds.Sync(speedMs)
}

// StartSequence enters Sequence with the given parameters. The control
// loop computes the step plan on its next iteration (sub-state Done is
// the entry marker).
func (o *Operation) StartSequence(degrees, speedMs, delayMs int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setMode(Sequence)
	o.sub = SubDone
	o.progress = Progress{}
	o.params = Params{SpeedMs: speedMs, DegPerPos: degrees, DelayMs: delayMs}
}

// TakePicture enters Picture; the control loop fires the shutter and
// returns to Idle.
func (o *Operation) TakePicture() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.setMode(Picture)
}

// Stop returns to Idle, discarding any sequence progress.
func (o *Operation) Stop() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.message = "Ready"
	o.setMode(Idle)
}

// CycleSpeed advances the speed table index (short-press action) and
// returns the new interval.
func (o *Operation) CycleSpeed() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speeds.Cycle()
}

// ToggleSpin flips between Spin and Idle (long-press action).
// Entering Spin installs the table's current speed.
func (o *Operation) ToggleSpin() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode == Spin {
		o.message = "Ready"
		o.setMode(Idle)
		return
	}
	o.setMode(Spin)
	o.params.SpeedMs = o.speeds.Current()
}

// SpeedIndex returns the speed table's current index.
func (o *Operation) SpeedIndex() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.speeds.Index()
}

// Params returns a copy of the current parameters.
func (o *Operation) Params() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params
}

// SetSpinSpeed records the interval the loop actually applied to the
// motor along with the corresponding status text.
func (o *Operation) SetSpinSpeed(speedMs int, message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.params.SpeedMs = speedMs
	o.message = message
}

// SequenceState returns the sub-state, progress and parameters under
// a single lock acquisition.
func (o *Operation) SequenceState() (SubState, Progress, Params) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sub, o.progress, o.params
}

// BeginSequenceRun installs the computed step plan and moves to the
// Trigger phase.
func (o *Operation) BeginSequenceRun(totalSteps, stepsPerRotation int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.progress = Progress{
		CurrentStep:      0,
		TotalSteps:       totalSteps,
		StepsPerRotation: stepsPerRotation,
		StepsRemaining:   stepsPerRotation,
	}
	o.sub = SubTrigger
}

// AdvanceToRotate moves the sequence to the Rotate phase. No-op unless
// the run is still in the Trigger phase: a fresh run started while the
// loop slept out the post-capture delay resets the sub-state, and the
// loop's stale decision must not overwrite that entry marker.
func (o *Operation) AdvanceToRotate() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode == Sequence && o.sub == SubTrigger {
		o.sub = SubRotate
	}
}

// FinishRotation records a completed rotation: next capture position,
// fresh per-rotation step budget, back to Trigger. No-op if the mode
// changed or the run was replaced mid-rotation.
func (o *Operation) FinishRotation() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode != Sequence || o.sub != SubRotate {
		return
	}
	o.progress.CurrentStep++
	o.progress.StepsRemaining = o.progress.StepsPerRotation
	o.sub = SubTrigger
}

// CompleteSequence ends the run: Idle, completion message. No-op if
// the run was stopped or replaced while the last delay elapsed.
func (o *Operation) CompleteSequence() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode != Sequence || o.sub != SubTrigger {
		return
	}
	o.message = "Sequence complete. Ready."
	o.setMode(Idle)
}

// CompletePicture returns to Idle after a single capture, unless a
// concurrent command already moved the mode elsewhere (last write
// wins, including the status text).
func (o *Operation) CompletePicture() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.mode != Picture {
		return
	}
	o.message = "Picture complete. Ready."
	o.setMode(Idle)
}

// FailToIdle records an error message and forces Idle. Used at the
// control loop's iteration boundary.
func (o *Operation) FailToIdle(message string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.message = message
	o.setMode(Idle)
}

// Snapshot copies the broadcast payload under the lock. The effective
// speed is the spin parameter if set, else the table's current entry.
// Serialization happens outside the lock, on the caller's side.
func (o *Operation) Snapshot() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	speed := o.params.SpeedMs
	if speed == 0 {
		speed = o.speeds.Current()
	}
	return Status{
		Message:     o.message,
		Mode:        o.mode,
		Speed:       speed,
		TriggerMode: o.trigger,
	}
}
