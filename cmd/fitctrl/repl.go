package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/term"

	"github.com/sgrimee/fitctrl/internal/config"
	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/groutine"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

// deviceInfoOrder fixes the display order of device identity strings, which
// arrive in an unordered map.
var deviceInfoOrder = []string{
	"device_name",
	"manufacturer",
	"model_number",
	"serial_number",
	"hardware_revision",
	"firmware_revision",
	"software_revision",
}

// REPL is the interactive command loop. It owns the command registry, the
// tab completer, and the goroutine that feeds live telemetry to the display.
type REPL struct {
	cfg       *config.Config
	logger    *logrus.Logger
	ctrl      *treadmill.Controller
	display   *Display
	registry  *Registry
	completer *Completer

	in          io.Reader
	statusDelay time.Duration
	running     bool
	wg          sync.WaitGroup
}

// NewREPL wires a REPL around an existing controller and display.
func NewREPL(cfg *config.Config, logger *logrus.Logger, ctrl *treadmill.Controller, display *Display) *REPL {
	r := &REPL{
		cfg:         cfg,
		logger:      logger,
		ctrl:        ctrl,
		display:     display,
		in:          os.Stdin,
		statusDelay: time.Second,
	}
	r.registry = newRegistry(logger, replCommands(r))
	r.completer = NewCompleter(r.registry)
	return r
}

// Run executes the REPL until quit, EOF, or context cancellation. It
// auto-connects once on startup; a failure there is reported but not fatal,
// the user can retry with the connect command.
func (r *REPL) Run(ctx context.Context) error {
	r.running = true
	r.display.Banner()
	r.display.Println("Attempting to connect to FTMS device...")

	r.ctrl.OnDisconnect(r.onDeviceDisconnect)
	if r.ctrl.Connect(ctx) {
		r.display.Println("✓ Connected successfully\n")
	} else {
		r.display.Println("⚠ Could not connect to device. Use 'connect' command to retry.\n")
	}

	drainCtx, cancel := context.WithCancel(ctx)
	updates := r.ctrl.Updates(drainCtx)
	r.wg.Add(1)
	groutine.Go(drainCtx, "repl-live-view", func(gctx context.Context) {
		defer r.wg.Done()
		defer r.logger.Debugf("%s: exiting", groutine.Name(gctx))
		for frame := range updates {
			if r.display.LiveEnabled() {
				r.display.UpdateLive(frame)
			}
		}
	})
	defer func() {
		cancel()
		r.ctrl.Wait()
		r.wg.Wait()
		if r.ctrl.IsConnected() {
			r.ctrl.Disconnect(context.Background())
		}
	}()

	if term.IsTerminal(int(os.Stdin.Fd())) {
		return r.runTerminal(ctx)
	}
	return r.runScanner(ctx)
}

// runTerminal reads commands in raw mode with tab completion. Display and
// log output are routed through the terminal so lines printed while a
// prompt is active stay readable.
func (r *REPL) runTerminal(ctx context.Context) error {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		r.logger.WithError(err).Warn("Failed to enter raw mode, using plain input")
		return r.runScanner(ctx)
	}
	defer term.Restore(fd, oldState)

	screen := struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}
	t := term.NewTerminal(screen, r.prompt())
	r.completer.SetOutput(t)
	t.AutoCompleteCallback = r.completer.Complete

	prevOut := r.display.SetWriter(t)
	defer r.display.SetWriter(prevOut)
	prevLog := r.logger.Out
	r.logger.SetOutput(t)
	defer r.logger.SetOutput(prevLog)

	for r.running {
		t.SetPrompt(r.prompt())
		line, err := t.ReadLine()
		if err != nil {
			// Ctrl+C and Ctrl+D both arrive as EOF in raw mode
			if errors.Is(err, io.EOF) {
				return r.cmdQuit(ctx, nil)
			}
			return err
		}
		r.registry.Dispatch(ctx, line, r.display)
	}
	return nil
}

// runScanner reads commands line by line without terminal features. Used
// for piped input and when raw mode is unavailable.
func (r *REPL) runScanner(ctx context.Context) error {
	scanner := bufio.NewScanner(r.in)
	for r.running && scanner.Scan() {
		r.registry.Dispatch(ctx, scanner.Text(), r.display)
		if ctx.Err() != nil {
			break
		}
	}
	if r.running {
		if err := r.cmdQuit(ctx, nil); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (r *REPL) prompt() string {
	if !r.ctrl.IsConnected() {
		return "[disconnected] > "
	}
	name := r.ctrl.Name()
	if name == "" {
		name = "Device"
	}
	return fmt.Sprintf("[%s] > ", name)
}

func (r *REPL) onDeviceDisconnect() {
	r.display.StopLive()
	r.display.Info("Device disconnected")
}

func (r *REPL) cmdConnect(ctx context.Context, args []string) error {
	if r.ctrl.IsConnected() {
		r.display.Info("Already connected")
		return nil
	}

	r.display.Info("Scanning for treadmill...")
	if !r.ctrl.Discover(ctx) {
		r.display.Error("Device not found. Make sure it's powered on and in range.")
		return nil
	}

	r.display.Info("Connecting...")
	if !r.ctrl.Connect(ctx) {
		r.display.Error("Connection failed. Please try again.")
		return nil
	}

	if info := r.ctrl.DeviceInfo(); len(info) > 0 {
		name := info["device_name"]
		if name == "" {
			name = "Device"
		}
		firmware := info["firmware_revision"]
		if firmware == "" {
			firmware = "Unknown"
		}
		r.display.Info(fmt.Sprintf("Connected to %s (Firmware: %s)", name, firmware))
	} else {
		r.display.Info("Connected!")
	}

	return r.cmdStatus(ctx, nil)
}

func (r *REPL) cmdDisconnect(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Info("Not connected")
		return nil
	}
	r.display.StopLive()
	r.ctrl.Disconnect(ctx)
	r.display.Info("Disconnected")
	return nil
}

func (r *REPL) cmdStart(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Error("Not connected. Use 'connect' first.")
		return nil
	}
	result := r.ctrl.Start(ctx)
	r.display.Result("start", result)
	if result == ftms.ResultSuccess {
		r.reportStatusAfterDelay(ctx)
	}
	return nil
}

func (r *REPL) cmdStop(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Error("Not connected. Use 'connect' first.")
		return nil
	}
	stopBelt(ctx, r.ctrl, r.display)
	return nil
}

func (r *REPL) cmdPause(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Error("Not connected. Use 'connect' first.")
		return nil
	}
	result := r.ctrl.Pause(ctx)
	r.display.Result("pause", result)
	if result == ftms.ResultSuccess {
		r.reportStatusAfterDelay(ctx)
	}
	return nil
}

func (r *REPL) cmdSpeed(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Error("Not connected. Use 'connect' first.")
		return nil
	}
	if len(args) == 0 {
		r.display.Error("Usage: speed <km/h>")
		r.display.Info(fmt.Sprintf("Range: %.1f-%.1f km/h", r.cfg.SpeedMin, r.cfg.SpeedMax))
		return nil
	}

	speed, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		r.display.Error(fmt.Sprintf("Invalid speed: %s", args[0]))
		return nil
	}

	switch result := r.ctrl.SetSpeed(ctx, speed); result {
	case ftms.ResultSuccess:
		r.display.Info(fmt.Sprintf("Speed set to %.1f km/h", speed))
	case ftms.ResultInvalidParameter:
		r.display.Error(fmt.Sprintf("Speed out of range. Must be %.1f-%.1f km/h", r.cfg.SpeedMin, r.cfg.SpeedMax))
	default:
		r.display.Result("set_speed", result)
	}
	return nil
}

func (r *REPL) cmdStatus(ctx context.Context, args []string) error {
	r.display.StatusTable(r.ctrl.Status())
	return nil
}

func (r *REPL) cmdLive(ctx context.Context, args []string) error {
	if r.display.LiveEnabled() {
		r.display.StopLive()
		r.display.Info("Live display disabled")
		return nil
	}
	r.display.StartLive()
	r.display.UpdateLive(r.ctrl.Status())
	return nil
}

func (r *REPL) cmdInfo(ctx context.Context, args []string) error {
	if !r.ctrl.IsConnected() {
		r.display.Error("Not connected. Use 'connect' first.")
		return nil
	}
	info := r.ctrl.DeviceInfo()
	if len(info) == 0 {
		r.display.Error("Could not retrieve device info")
		return nil
	}

	r.display.Header("Device Information")
	known := make(map[string]bool, len(deviceInfoOrder))
	for _, key := range deviceInfoOrder {
		known[key] = true
		if value, ok := info[key]; ok {
			r.display.Println(fmt.Sprintf("  %s: %s", key, value))
		}
	}
	var extras []string
	for key := range info {
		if !known[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		r.display.Println(fmt.Sprintf("  %s: %s", key, info[key]))
	}

	r.display.Println("")
	r.display.Header("Speed Settings")
	r.display.Println(fmt.Sprintf("  Range: %.1f-%.1f km/h", r.cfg.SpeedMin, r.cfg.SpeedMax))
	r.display.Println(fmt.Sprintf("  Step: %.1f km/h", r.cfg.SpeedStep))

	r.display.Println("")
	r.display.Header("Debug Information")
	r.display.Println(fmt.Sprintf("  Connected: %t", r.ctrl.IsConnected()))
	r.display.Println(fmt.Sprintf("  Running: %t", r.ctrl.Running()))
	r.display.Println(fmt.Sprintf("  Live enabled: %t", r.display.LiveEnabled()))
	r.display.Println(fmt.Sprintf("  Update queue size: %d", r.ctrl.QueueDepth()))
	r.display.Println(fmt.Sprintf("  Device name: %s", r.ctrl.Name()))
	trainingStatus := "unknown"
	if status, ok := r.ctrl.TrainingStatus(); ok {
		trainingStatus = status.String()
	}
	r.display.Println(fmt.Sprintf("  Training status: %s", trainingStatus))
	r.display.Println(fmt.Sprintf("  Speed: %.1f", r.ctrl.Status().Speed))
	return nil
}

func (r *REPL) cmdHelp(ctx context.Context, args []string) error {
	r.display.Help(r.registry)
	return nil
}

func (r *REPL) cmdQuit(ctx context.Context, args []string) error {
	r.display.StopLive()
	if r.ctrl.IsConnected() {
		r.display.Info("Disconnecting...")
		r.ctrl.Disconnect(ctx)
	}
	r.display.Highlight("Goodbye!")
	r.running = false
	return nil
}

// reportStatusAfterDelay gives the next telemetry frame time to land before
// reading the training status back.
func (r *REPL) reportStatusAfterDelay(ctx context.Context) {
	select {
	case <-time.After(r.statusDelay):
	case <-ctx.Done():
		return
	}
	r.display.Info(fmt.Sprintf("Status: %s", r.ctrl.Status().Status))
}

// stopBelt stops a moving belt by pausing it rather than sending the native
// stop, which some machines reject while in motion. When the belt is already
// stopped the native stop is attempted anyway; its failure is not an error.
// Returns false when the pause that should stop the belt fails.
func stopBelt(ctx context.Context, ctrl *treadmill.Controller, display *Display) bool {
	if ctrl.Status().Status == ftms.StatusManualMode.String() {
		display.Info("Pausing treadmill to stop...")
		result := ctrl.Pause(ctx)
		if result != ftms.ResultSuccess {
			display.Result("pause", result)
			return false
		}
		display.Info("Treadmill stopped (paused)")
		return true
	}

	display.Info("Treadmill is already stopped")
	if ctrl.Stop(ctx) == ftms.ResultSuccess {
		display.Info("Stop command completed")
	}
	return true
}
