package stepper

import (
	"fmt"
	"testing"
	"time"

	"turntable/internal/hw/gpio"
)

// recordingDriver tracks the last level written to each pin.
type recordingDriver struct {
	levels map[int]gpio.Level
	modes  map[int]gpio.PinMode
	fail   bool
}

func newRecordingDriver() *recordingDriver {
	return &recordingDriver{
		levels: make(map[int]gpio.Level),
		modes:  make(map[int]gpio.PinMode),
	}
}

func (d *recordingDriver) SetupPin(pin int, mode gpio.PinMode) error {
	d.modes[pin] = mode
	return nil
}

func (d *recordingDriver) WritePin(pin int, level gpio.Level) error {
	if d.fail {
		return fmt.Errorf("write pin %d", pin)
	}
	d.levels[pin] = level
	return nil
}

func (d *recordingDriver) ReadPin(pin int) (gpio.Level, error) { return d.levels[pin], nil }
func (d *recordingDriver) Close() error                        { return nil }

func (d *recordingDriver) energized() []int {
	var pins []int
	for pin, level := range d.levels {
		if level == gpio.High {
			pins = append(pins, pin)
		}
	}
	return pins
}

var testPins = [4]int{21, 20, 19, 18}

func newTestMotor(d *recordingDriver) *Motor {
	return NewMotor(d, Config{CoilPins: testPins, StepInterval: time.Microsecond})
}

func TestNewMotorDeEnergizesCoils(t *testing.T) {
	d := newRecordingDriver()
	newTestMotor(d)

	for _, pin := range testPins {
		if d.modes[pin] != gpio.Output {
			t.Errorf("pin %d mode = %v, want Output", pin, d.modes[pin])
		}
		if d.levels[pin] != gpio.Low {
			t.Errorf("pin %d = High, want Low", pin)
		}
	}
}

func TestStepEnergizesOneCoilAtATime(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	// Phase starts at 0; the first forward step lands on phase 1.
	want := []int{testPins[1], testPins[2], testPins[3], testPins[0]}
	for i, pin := range want {
		if err := m.Step(Forward); err != nil {
			t.Fatalf("Step %d: %v", i, err)
		}
		got := d.energized()
		if len(got) != 1 || got[0] != pin {
			t.Fatalf("step %d: energized = %v, want [%d]", i, got, pin)
		}
	}
}

func TestStepBackwardReversesSequence(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	// From phase 0, a backward step wraps to phase 3.
	if err := m.Step(Backward); err != nil {
		t.Fatal(err)
	}
	got := d.energized()
	if len(got) != 1 || got[0] != testPins[3] {
		t.Fatalf("energized = %v, want [%d]", got, testPins[3])
	}

	// Forward then backward returns to the same phase.
	if err := m.Step(Forward); err != nil {
		t.Fatal(err)
	}
	if err := m.Step(Backward); err != nil {
		t.Fatal(err)
	}
	got = d.energized()
	if len(got) != 1 || got[0] != testPins[3] {
		t.Errorf("energized = %v, want [%d]", got, testPins[3])
	}
}

func TestMoveStepsNegative(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	// Four backward steps complete one full coil cycle.
	if err := m.MoveSteps(-4); err != nil {
		t.Fatal(err)
	}
	got := d.energized()
	if len(got) != 1 || got[0] != testPins[0] {
		t.Errorf("energized = %v, want [%d]", got, testPins[0])
	}
}

func TestReleaseDropsAllCoils(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	if err := m.Step(Forward); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(); err != nil {
		t.Fatal(err)
	}
	if got := d.energized(); len(got) != 0 {
		t.Errorf("energized after release = %v, want none", got)
	}
}

func TestStepPropagatesDriverError(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	d.fail = true
	if err := m.Step(Forward); err == nil {
		t.Error("expected error from failing driver")
	}
}

func TestSetStepIntervalIgnoresNonPositive(t *testing.T) {
	d := newRecordingDriver()
	m := newTestMotor(d)

	m.SetStepInterval(0)
	m.SetStepInterval(-time.Millisecond)

	m.mu.Lock()
	got := m.interval
	m.mu.Unlock()
	if got != time.Microsecond {
		t.Errorf("interval = %v, want %v", got, time.Microsecond)
	}
}
