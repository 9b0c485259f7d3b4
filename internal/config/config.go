package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PinsConfig holds the GPIO pin assignments (BCM numbering).
type PinsConfig struct {
	StepperCoils [4]int `yaml:"stepper_coils" json:"stepper_coils"` // unipolar driver inputs IN1-IN4
	Button       int    `yaml:"button" json:"button"`               // momentary push button, pull-down
	WiredShutter int    `yaml:"wired_shutter" json:"wired_shutter"` // wired shutter release output
	IRTransmit   int    `yaml:"ir_transmit" json:"ir_transmit"`     // IR LED output
	Indicator    int    `yaml:"indicator" json:"indicator"`         // activity LED
}

// SpeedsConfig holds the three step-interval presets in milliseconds.
// Smaller is faster.
type SpeedsConfig struct {
	SlowMs   int `yaml:"slow_ms" json:"slow_ms"`
	NormalMs int `yaml:"normal_ms" json:"normal_ms"`
	FastMs   int `yaml:"fast_ms" json:"fast_ms"`
}

// PhotoDelaysConfig holds the pause presets between sequence shots (ms).
type PhotoDelaysConfig struct {
	ShortMs  int `yaml:"short_ms" json:"short_ms"`
	MediumMs int `yaml:"medium_ms" json:"medium_ms"`
	LongMs   int `yaml:"long_ms" json:"long_ms"`
}

// StartupConfig controls the initial operating mode.
type StartupConfig struct {
	Autospin bool `yaml:"autospin" json:"autospin"` // start in SPIN instead of IDLE
}

// DefaultsConfig contains generic parameters.
type DefaultsConfig struct {
	TriggerMode    string  `yaml:"trigger_mode" json:"trigger_mode"`         // "WIRED" or "IR"
	StepsPerDegree float64 `yaml:"steps_per_degree" json:"steps_per_degree"` // motor steps per platform degree
	ListenAddr     string  `yaml:"listen_addr" json:"listen_addr"`           // web server address
	DebugLevel     int     `yaml:"debug_level" json:"debug_level"`           // debug level 0-4
	MockGPIO       bool    `yaml:"mock_gpio" json:"mock_gpio"`               // use mock GPIO (true=dev/test, false=real Raspberry Pi)
}

// Config aggregates all application configuration.
type Config struct {
	Hostname    string            `yaml:"hostname" json:"hostname"`
	Pins        PinsConfig        `yaml:"pins" json:"pins"`
	Speeds      SpeedsConfig      `yaml:"speeds_ms" json:"speeds_ms"`
	PhotoDelays PhotoDelaysConfig `yaml:"photo_delays_ms" json:"photo_delays_ms"`
	Startup     StartupConfig     `yaml:"startup" json:"startup"`
	Defaults    DefaultsConfig    `yaml:"defaults" json:"defaults"`
}

// defaultStepsPerDegree matches the stock gearing: 1650688*6 motor steps
// for 810 platform revolutions of 360 degrees each.
const defaultStepsPerDegree = float64(1650688*6) / float64(360*810)

// Load reads a YAML file and returns the configuration.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the configuration back to a YAML file.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// applyDefaults fills in zero values and validates the result.
func (c *Config) applyDefaults() error {
	if c.Hostname == "" {
		c.Hostname = "smart-turntable"
	}
	if c.Speeds.SlowMs <= 0 {
		c.Speeds.SlowMs = 13
	}
	if c.Speeds.NormalMs <= 0 {
		c.Speeds.NormalMs = 4
	}
	if c.Speeds.FastMs <= 0 {
		c.Speeds.FastMs = 1
	}
	if c.PhotoDelays.ShortMs <= 0 {
		c.PhotoDelays.ShortMs = 500
	}
	if c.PhotoDelays.MediumMs <= 0 {
		c.PhotoDelays.MediumMs = 1000
	}
	if c.PhotoDelays.LongMs <= 0 {
		c.PhotoDelays.LongMs = 2000
	}
	if c.Defaults.TriggerMode == "" {
		c.Defaults.TriggerMode = "WIRED"
	}
	if c.Defaults.TriggerMode != "WIRED" && c.Defaults.TriggerMode != "IR" {
		return fmt.Errorf("defaults.trigger_mode must be WIRED or IR, got %q", c.Defaults.TriggerMode)
	}
	if c.Defaults.StepsPerDegree <= 0 {
		c.Defaults.StepsPerDegree = defaultStepsPerDegree
	}
	if c.Defaults.ListenAddr == "" {
		c.Defaults.ListenAddr = ":80"
	}

	// The speed table needs three distinct entries to cycle through.
	if c.Speeds.SlowMs == c.Speeds.NormalMs || c.Speeds.NormalMs == c.Speeds.FastMs ||
		c.Speeds.SlowMs == c.Speeds.FastMs {
		return fmt.Errorf("speeds_ms entries must be distinct, got %d/%d/%d",
			c.Speeds.SlowMs, c.Speeds.NormalMs, c.Speeds.FastMs)
	}
	return nil
}

// SpeedTable returns the step-interval presets ordered slow to fast.
func (c *Config) SpeedTable() []int {
	return []int{c.Speeds.SlowMs, c.Speeds.NormalMs, c.Speeds.FastMs}
}

// NormalSpeedMs returns the default step interval used when a command
// omits a speed.
func (c *Config) NormalSpeedMs() int {
	return c.Speeds.NormalMs
}

// MediumDelayMs returns the default pause between sequence shots used
// when a command omits a delay.
func (c *Config) MediumDelayMs() int {
	return c.PhotoDelays.MediumMs
}

// MediumDelay returns MediumDelayMs as a duration.
func (c *Config) MediumDelay() time.Duration {
	return time.Duration(c.PhotoDelays.MediumMs) * time.Millisecond
}
