package command

import (
	"encoding/json"
	"fmt"

	"turntable/internal/debug"
	"turntable/internal/hw/camera"
	"turntable/internal/logic/state"
)

// Message is an inbound remote command. Optional fields are pointers
// so that an omitted field falls back to the configured default.
type Message struct {
	Command string `json:"command"`
	Mode    string `json:"mode,omitempty"`  // set_trigger_mode
	Speed   *int   `json:"speed,omitempty"` // step interval, ms
	Deg     *int   `json:"deg,omitempty"`   // degrees between captures
	Delay   *int   `json:"delay,omitempty"` // pause after capture, ms
	State   *bool  `json:"state,omitempty"` // debug_wired_shutter
}

// Defaults fill in omitted command fields.
type Defaults struct {
	NormalSpeedMs int
	MediumDelayMs int
}

const defaultDegrees = 45

// Diagnostics are the bench-test pass-throughs that bypass the
// operation state entirely.
type Diagnostics interface {
	SendIR() error
	SetWired(on bool) error
}

// Handler translates remote messages into state mutations.
type Handler struct {
	op       *state.Operation
	defaults Defaults
	diag     Diagnostics
}

// NewHandler creates a command handler over the shared state.
func NewHandler(op *state.Operation, defaults Defaults, diag Diagnostics) *Handler {
	return &Handler{op: op, defaults: defaults, diag: diag}
}

// HandleRaw parses and applies a JSON command. Malformed input yields
// an error and no state change.
func (h *Handler) HandleRaw(data []byte) error {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("parse command: %w", err)
	}
	h.Apply(msg)
	return nil
}

// Apply installs the command's effect on the operation state.
// Unknown commands are no-ops.
func (h *Handler) Apply(msg Message) {
	debug.Command(msg.Command)

	switch msg.Command {
	case "set_trigger_mode":
		switch camera.Mode(msg.Mode) {
		case camera.Wired, camera.IR:
			h.op.SetTriggerMode(camera.Mode(msg.Mode))
		}
	case "start_spin":
		h.op.StartSpin(h.speed(msg.Speed))
	case "set_speed":
		h.op.SetSpeed(h.speed(msg.Speed))
	case "start_photo_sequence":
		deg := defaultDegrees
		if msg.Deg != nil {
			deg = *msg.Deg
		}
		delay := h.defaults.MediumDelayMs
		if msg.Delay != nil {
			delay = *msg.Delay
		}
		h.op.StartSequence(deg, h.speed(msg.Speed), delay)
	case "take_picture":
		h.op.TakePicture()
	case "stop":
		h.op.Stop()
	case "debug_ir_trigger":
		if h.diag != nil {
			if err := h.diag.SendIR(); err != nil {
				debug.Error(err)
			}
		}
	case "debug_wired_shutter":
		if h.diag != nil {
			on := msg.State != nil && *msg.State
			if err := h.diag.SetWired(on); err != nil {
				debug.Error(err)
			}
		}
	default:
		debug.Verbose("Ignoring unknown command %q", msg.Command)
	}
}

func (h *Handler) speed(s *int) int {
	if s != nil {
		return *s
	}
	return h.defaults.NormalSpeedMs
}
