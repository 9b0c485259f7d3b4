package stepper

import (
	"sync"
	"time"

	"turntable/internal/debug"
	"turntable/internal/hw/gpio"
)

// Direction of a single motor step.
type Direction int

const (
	Forward  Direction = 1
	Backward Direction = -1
)

// fullStepSequence is the 4-phase unipolar coil pattern (one coil
// energized at a time).
var fullStepSequence = [4][4]bool{
	{true, false, false, false},
	{false, true, false, false},
	{false, false, true, false},
	{false, false, false, true},
}

// Config holds the hardware configuration for the turntable motor.
type Config struct {
	CoilPins     [4]int        // unipolar driver inputs IN1-IN4
	StepInterval time.Duration // pause after each step; if 0, defaults to 4ms
}

// Motor drives a unipolar full-step motor through four coil pins.
// Step paces itself with the configured step interval, so calling it
// in a tight loop yields the selected rotation speed.
type Motor struct {
	gpio gpio.Driver
	cfg  Config

	mu       sync.Mutex
	interval time.Duration
	phase    int
}

// NewMotor creates a new motor controller and de-energizes the coils.
func NewMotor(g gpio.Driver, cfg Config) *Motor {
	for _, pin := range cfg.CoilPins {
		_ = g.SetupPin(pin, gpio.Output)
		_ = g.WritePin(pin, gpio.Low)
	}

	interval := cfg.StepInterval
	if interval <= 0 {
		interval = 4 * time.Millisecond
	}

	return &Motor{
		gpio:     g,
		cfg:      cfg,
		interval: interval,
	}
}

// SetStepInterval changes the pause applied after each step.
func (m *Motor) SetStepInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	m.mu.Lock()
	m.interval = d
	m.mu.Unlock()
	debug.Trace("Stepper: step interval set to %v", d)
}

// Step advances the motor by one unit in the given direction, then
// sleeps for the current step interval.
func (m *Motor) Step(dir Direction) error {
	m.mu.Lock()
	m.phase = (m.phase + int(dir) + len(fullStepSequence)) % len(fullStepSequence)
	phase := m.phase
	interval := m.interval
	m.mu.Unlock()

	for i, pin := range m.cfg.CoilPins {
		level := gpio.Low
		if fullStepSequence[phase][i] {
			level = gpio.High
		}
		if err := m.gpio.WritePin(pin, level); err != nil {
			return err
		}
	}
	time.Sleep(interval)
	return nil
}

// MoveSteps moves the motor by a number of steps (positive or negative).
func (m *Motor) MoveSteps(steps int) error {
	dir := Forward
	if steps < 0 {
		dir = Backward
		steps = -steps
	}
	for i := 0; i < steps; i++ {
		if err := m.Step(dir); err != nil {
			return err
		}
	}
	return nil
}

// Release de-energizes all coils so the motor freewheels without
// holding torque or heat buildup.
func (m *Motor) Release() error {
	debug.Trace("Stepper: releasing coils")
	for _, pin := range m.cfg.CoilPins {
		if err := m.gpio.WritePin(pin, gpio.Low); err != nil {
			return err
		}
	}
	return nil
}
