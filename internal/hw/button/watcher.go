package button

import (
	"context"
	"time"

	"turntable/internal/debug"
	"turntable/internal/hw/gpio"
)

// queryInterval is the pin sampling period. Edges shorter than this
// are electrical noise and are meant to be missed.
const queryInterval = 2 * time.Millisecond

// EdgeFunc receives every observed level change with its timestamp.
// It runs on the watcher goroutine and must never block.
type EdgeFunc func(pressed bool, now time.Time)

// Watcher samples a push-button input pin and reports edges.
// It plays the role of the interrupt context: the edge callback is the
// only thing it runs, and nothing downstream may stall it.
type Watcher struct {
	gpio   gpio.Driver
	pin    int
	onEdge EdgeFunc
}

// NewWatcher creates a watcher for the given input pin (pull-down,
// pressed = high).
func NewWatcher(g gpio.Driver, pin int, onEdge EdgeFunc) *Watcher {
	_ = g.SetupPin(pin, gpio.InputPullDown)
	return &Watcher{gpio: g, pin: pin, onEdge: onEdge}
}

// Run samples the pin until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(queryInterval)
	defer ticker.Stop()

	last := gpio.Low
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			level, err := w.gpio.ReadPin(w.pin)
			if err != nil {
				debug.Error(err)
				continue
			}
			if level != last {
				last = level
				debug.Trace("Button: edge pin=%d pressed=%v", w.pin, level == gpio.High)
				w.onEdge(level == gpio.High, now)
			}
		}
	}
}
