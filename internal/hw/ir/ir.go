package ir

import (
	"time"

	"turntable/internal/debug"
	"turntable/internal/hw/gpio"
)

// Transmitter sends a pulse-coded infrared signal once.
// Pulse durations are in microseconds, alternating mark/space,
// terminated by a zero entry.
type Transmitter interface {
	Send(pulses []uint16) error
}

// GPIOTransmitter bit-bangs the mark/space envelope on a single pin.
// Carrier modulation is handled by the LED driver stage.
type GPIOTransmitter struct {
	gpio gpio.Driver
	pin  int
}

// NewGPIOTransmitter creates a transmitter on the given output pin.
func NewGPIOTransmitter(g gpio.Driver, pin int) *GPIOTransmitter {
	_ = g.SetupPin(pin, gpio.Output)
	_ = g.WritePin(pin, gpio.Low)
	return &GPIOTransmitter{gpio: g, pin: pin}
}

// Send transmits the pulse train. Even indices are marks (pin high),
// odd indices are spaces (pin low). A zero duration terminates.
func (t *GPIOTransmitter) Send(pulses []uint16) error {
	debug.Trace("IR: sending %d pulse entries on pin %d", len(pulses), t.pin)
	defer func() {
		_ = t.gpio.WritePin(t.pin, gpio.Low)
	}()

	for i, d := range pulses {
		if d == 0 {
			break
		}
		level := gpio.Low
		if i%2 == 0 {
			level = gpio.High
		}
		if err := t.gpio.WritePin(t.pin, level); err != nil {
			return err
		}
		time.Sleep(time.Duration(d) * time.Microsecond)
	}
	return nil
}
