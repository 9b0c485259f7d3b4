package control

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"turntable/internal/debug"
	"turntable/internal/hw/camera"
	"turntable/internal/hw/stepper"
	"turntable/internal/logic/button"
	"turntable/internal/logic/state"
)

// Motor is the stepper primitive surface the loop actuates.
// Step must be safe to call at sub-millisecond cadence.
type Motor interface {
	Step(dir stepper.Direction) error
	SetStepInterval(d time.Duration)
	Release() error
}

// Shutter releases the camera using the selected transport.
type Shutter interface {
	Fire(mode camera.Mode) error
}

// BroadcastFunc pushes the current status to remote listeners.
type BroadcastFunc func()

// Config tunes the loop timing.
type Config struct {
	StepsPerDegree float64
	IdlePoll       time.Duration // pause per iteration while idle
	Heartbeat      time.Duration // idle re-broadcast interval
}

// Loop is the single cooperative task that owns physical actuation.
// It is the only writer of motor commands; everything else only
// mutates the shared state and waits for the loop to observe it.
type Loop struct {
	op      *state.Operation
	buttons *button.Machine
	motor   Motor
	shutter Shutter
	notify  BroadcastFunc
	cfg     Config

	// loop-local actuation caches, reset on every mode change
	lastMode       state.Mode
	appliedSpeedMs int
	lastBroadcast  time.Time
}

// New creates the control loop. notify may be nil.
func New(op *state.Operation, buttons *button.Machine, motor Motor, shutter Shutter, notify BroadcastFunc, cfg Config) *Loop {
	if cfg.IdlePoll <= 0 {
		cfg.IdlePoll = 100 * time.Millisecond
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 5 * time.Second
	}
	return &Loop{
		op:      op,
		buttons: buttons,
		motor:   motor,
		shutter: shutter,
		notify:  notify,
		cfg:     cfg,
	}
}

// Run executes the loop until ctx is cancelled. Errors never escape an
// iteration: they are recorded in the status text and force Idle. This
// is the device's availability guarantee.
func (l *Loop) Run(ctx context.Context) {
	l.appliedSpeedMs = -1
	l.lastBroadcast = time.Now()

	for {
		if ctx.Err() != nil {
			_ = l.motor.Release()
			return
		}

		now := time.Now()
		l.pollButtons(now)

		oldMessage := l.op.Message()
		if err := l.iterate(ctx); err != nil {
			debug.Error(err)
			l.op.FailToIdle("Error: " + err.Error())
		}
		l.broadcastIfNeeded(oldMessage, time.Now())
	}
}

// pollButtons advances the button state machine and drains its action
// mailbox, applying the action under the shared-state lock.
func (l *Loop) pollButtons(now time.Time) {
	l.buttons.Poll(now)

	action := l.buttons.TakePendingAction()
	if action == button.None {
		return
	}
	debug.Button(action.String())
	switch action {
	case button.CycleSpeed:
		l.op.CycleSpeed()
	case button.ToggleSpin:
		l.op.ToggleSpin()
	}
}

// iterate runs one pass of the operation state machine. A panic is
// converted to an error at this boundary so the loop keeps running.
func (l *Loop) iterate(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("control loop panic: %v", r)
		}
	}()

	mode, tableSpeed := l.op.ModeAndTableSpeed()
	if mode != l.lastMode {
		// De-energize and drop actuation caches so nothing stale
		// leaks across a mode switch.
		debug.Mode(string(l.lastMode), string(mode))
		l.appliedSpeedMs = -1
		if err := l.motor.Release(); err != nil {
			return err
		}
	}
	l.lastMode = mode

	switch mode {
	case state.Idle:
		// The status text is left alone: completion and error
		// messages persist until the next action replaces them.
		if err := l.motor.Release(); err != nil {
			return err
		}
		l.sleep(ctx, l.cfg.IdlePoll)

	case state.Spin:
		if l.appliedSpeedMs != tableSpeed {
			l.appliedSpeedMs = tableSpeed
			l.motor.SetStepInterval(time.Duration(tableSpeed) * time.Millisecond)
			l.op.SetSpinSpeed(tableSpeed, fmt.Sprintf("Spinning (speed: %dms/step)", tableSpeed))
		}
		if err := l.motor.Step(stepper.Forward); err != nil {
			return err
		}

	case state.Picture:
		l.op.SetMessage("Taking picture...")
		if err := l.shutter.Fire(l.op.TriggerMode()); err != nil {
			return err
		}
		l.op.CompletePicture()

	case state.Sequence:
		return l.sequenceStep(ctx)
	}
	return nil
}

// sequenceStep runs one phase of the photo sequence sub-state machine.
func (l *Loop) sequenceStep(ctx context.Context) error {
	sub, prog, params := l.op.SequenceState()

	if sub == state.SubDone {
		// Entering the sequence: compute the step plan.
		l.motor.SetStepInterval(time.Duration(params.SpeedMs) * time.Millisecond)
		totalSteps := 4
		if params.DegPerPos > 0 {
			totalSteps = 360 / params.DegPerPos
			if totalSteps < 1 {
				totalSteps = 1
			}
		}
		stepsPerRotation := int(float64(params.DegPerPos) * l.cfg.StepsPerDegree)
		debug.Verbose("Sequence plan: %d captures, %d steps per rotation", totalSteps, stepsPerRotation)
		l.op.BeginSequenceRun(totalSteps, stepsPerRotation)
		sub, prog, params = l.op.SequenceState()
	}

	switch sub {
	case state.SubTrigger:
		l.op.SetMessage(fmt.Sprintf("Sequence %d/%d: Processing...", prog.CurrentStep+1, prog.TotalSteps))
		if err := l.shutter.Fire(l.op.TriggerMode()); err != nil {
			return err
		}
		// Re-read the delay: a remote command may have replaced the
		// parameters while the shutter was firing.
		delayMs := l.op.Params().DelayMs
		l.sleep(ctx, time.Duration(delayMs)*time.Millisecond)

		if prog.CurrentStep >= prog.TotalSteps-1 {
			l.op.CompleteSequence()
		} else {
			l.op.AdvanceToRotate()
		}

	case state.SubRotate:
		l.op.SetMessage(fmt.Sprintf("Sequence %d/%d: Rotating...", prog.CurrentStep+1, prog.TotalSteps))
		debug.Rotate(prog.CurrentStep+1, prog.TotalSteps, prog.StepsRemaining)
		for i := 0; i < prog.StepsRemaining; i++ {
			// Re-check on every step so a stop or a fresh run
			// takes effect within one step period.
			if ctx.Err() != nil || !l.op.RotationActive() {
				return nil
			}
			if err := l.motor.Step(stepper.Forward); err != nil {
				return err
			}
		}
		l.op.FinishRotation()
	}
	return nil
}

// broadcastIfNeeded pushes status on every text change, plus an idle
// heartbeat so listeners see liveness.
func (l *Loop) broadcastIfNeeded(oldMessage string, now time.Time) {
	if l.notify == nil {
		return
	}
	if msg := l.op.Message(); msg != oldMessage {
		l.notify()
		l.lastBroadcast = now
		return
	}
	if l.op.Mode() == state.Idle && now.Sub(l.lastBroadcast) > l.cfg.Heartbeat {
		l.notify()
		runtime.GC() // nothing is moving; reclaim between jobs
		l.lastBroadcast = now
	}
}

// sleep pauses for d, returning early on ctx cancellation.
func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
