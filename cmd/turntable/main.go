package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"turntable/internal/config"
	"turntable/internal/debug"
	hwbutton "turntable/internal/hw/button"
	"turntable/internal/hw/camera"
	"turntable/internal/hw/gpio"
	"turntable/internal/hw/ir"
	"turntable/internal/hw/stepper"
	"turntable/internal/logic/button"
	"turntable/internal/logic/command"
	"turntable/internal/logic/control"
	"turntable/internal/logic/state"
	"turntable/internal/web"
)

func main() {
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	addr := flag.String("addr", "", "listen address override (e.g. :8080)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if *addr != "" {
		cfg.Defaults.ListenAddr = *addr
	}

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Hostname", cfg.Hostname)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	debug.Value("Mock GPIO", cfg.Defaults.MockGPIO)
	debug.Step(1, "Initializing GPIO driver")
	gpioDriver, err := gpio.NewDriver(cfg.Defaults.MockGPIO)
	if err != nil {
		log.Fatalf("init GPIO failed: %v", err)
	}
	defer func() {
		if err := gpioDriver.Close(); err != nil {
			log.Printf("closing GPIO driver failed: %v", err)
		}
	}()

	debug.Step(2, "Initializing stepper motor")
	motor := stepper.NewMotor(gpioDriver, stepper.Config{
		CoilPins:     cfg.Pins.StepperCoils,
		StepInterval: time.Duration(cfg.NormalSpeedMs()) * time.Millisecond,
	})
	debug.PrintStruct("Pin config", cfg.Pins)

	debug.Step(3, "Initializing camera trigger")
	irTx := ir.NewGPIOTransmitter(gpioDriver, cfg.Pins.IRTransmit)
	trigger := camera.NewTrigger(gpioDriver, irTx, cfg.Pins.WiredShutter, cfg.Pins.Indicator)
	debug.Value("Default trigger mode", cfg.Defaults.TriggerMode)

	debug.Step(4, "Creating operation state")
	speeds := state.NewSpeedTable(cfg.SpeedTable(), 1) // start on "normal"
	debug.Value("Speed table (ms)", speeds.Values())
	op := state.NewOperation(speeds, camera.Mode(cfg.Defaults.TriggerMode))
	if cfg.Startup.Autospin {
		debug.Info("Autospin enabled, starting in SPIN")
		op.ToggleSpin()
	}

	buttons := button.NewMachine()
	watcher := hwbutton.NewWatcher(gpioDriver, cfg.Pins.Button, buttons.OnEdge)

	broadcaster := web.NewBroadcaster(op.Snapshot)
	commands := command.NewHandler(op, command.Defaults{
		NormalSpeedMs: cfg.NormalSpeedMs(),
		MediumDelayMs: cfg.MediumDelayMs(),
	}, trigger)

	loop := control.New(op, buttons, motor, trigger, broadcaster.Broadcast, control.Config{
		StepsPerDegree: cfg.Defaults.StepsPerDegree,
	})

	// Shutting the process down is how settings are applied; the
	// supervisor relaunches it.
	restart := func() {
		debug.Info("Restarting on request")
		cancel()
	}
	srv := web.NewServer(cfg.Defaults.ListenAddr, broadcaster, commands, cfg, *cfgPath, restart)

	debug.Step(5, "Haptic ready signal")
	pulseMotor(motor, 2)

	debug.Section("Starting tasks")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		loop.Run(ctx)
	}()

	if err := srv.Run(ctx); err != nil {
		log.Printf("web server: %v", err)
	}
	cancel()
	wg.Wait()
	debug.Summary("Turntable stopped")
}

// pulseMotor wiggles the platform forward and backward so the operator
// can tell the device is up before the network is.
func pulseMotor(m *stepper.Motor, repetitions int) {
	m.SetStepInterval(2 * time.Millisecond)
	for i := 0; i < repetitions; i++ {
		_ = m.MoveSteps(25)
		_ = m.MoveSteps(-25)
		time.Sleep(50 * time.Millisecond)
	}
	_ = m.Release()
}
