package camera

import (
	"fmt"
	"time"

	"turntable/internal/debug"
	"turntable/internal/hw/gpio"
	"turntable/internal/hw/ir"
)

// Mode selects the physical transport that releases the shutter.
type Mode string

const (
	Wired Mode = "WIRED"
	IR    Mode = "IR"
)

// ShutterSignal is the IR release code: mark/space durations in
// microseconds with a zero terminator (short mark, short space,
// long mark, long space).
var ShutterSignal = []uint16{550, 7200, 550, 40000, 0}

const (
	wiredPulse = 200 * time.Millisecond // wired contact closure window
	settleTime = 50 * time.Millisecond  // indicator hold after the signal
)

// Trigger produces a shutter-release signal over one of two transports.
// Fire is synchronous: it returns only once the signal is fully issued,
// so callers must not hold the shared-state lock across it.
type Trigger struct {
	gpio         gpio.Driver
	ir           ir.Transmitter
	shutterPin   int
	indicatorPin int
}

// NewTrigger creates a camera trigger. The wired shutter and indicator
// pins are configured as outputs and driven low.
func NewTrigger(g gpio.Driver, tx ir.Transmitter, shutterPin, indicatorPin int) *Trigger {
	_ = g.SetupPin(shutterPin, gpio.Output)
	_ = g.WritePin(shutterPin, gpio.Low)
	_ = g.SetupPin(indicatorPin, gpio.Output)
	_ = g.WritePin(indicatorPin, gpio.Low)

	return &Trigger{
		gpio:         g,
		ir:           tx,
		shutterPin:   shutterPin,
		indicatorPin: indicatorPin,
	}
}

// Fire releases the shutter using the given transport. The indicator
// is held on for the signal duration plus a short settle time.
func (t *Trigger) Fire(mode Mode) error {
	debug.Trigger(string(mode))
	_ = t.gpio.WritePin(t.indicatorPin, gpio.High)
	defer func() {
		time.Sleep(settleTime)
		_ = t.gpio.WritePin(t.indicatorPin, gpio.Low)
	}()

	switch mode {
	case Wired:
		if err := t.gpio.WritePin(t.shutterPin, gpio.High); err != nil {
			return err
		}
		time.Sleep(wiredPulse)
		if err := t.gpio.WritePin(t.shutterPin, gpio.Low); err != nil {
			return err
		}
	case IR:
		if err := t.ir.Send(ShutterSignal); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown trigger mode: %q", mode)
	}
	return nil
}

// SendIR transmits the shutter code directly, bypassing mode selection.
// Bench-test diagnostic.
func (t *Trigger) SendIR() error {
	debug.Info("DEBUG: triggering IR")
	return t.ir.Send(ShutterSignal)
}

// SetWired drives the wired shutter output directly. Bench-test
// diagnostic; the line stays where it is put.
func (t *Trigger) SetWired(on bool) error {
	debug.Info("DEBUG: setting wired shutter to %v", on)
	level := gpio.Low
	if on {
		level = gpio.High
	}
	return t.gpio.WritePin(t.shutterPin, level)
}
