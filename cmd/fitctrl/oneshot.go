package main

import (
	"context"
	"time"

	"github.com/sgrimee/fitctrl/internal/treadmill"
)

// runOneShot executes a single action flag non-interactively. statusDelay
// is how long the status action waits for telemetry to arrive after
// connecting. The device is released before returning.
func runOneShot(ctx context.Context, action string, ctrl *treadmill.Controller, display *Display, statusDelay time.Duration) error {
	// clear-cache works without a device
	if action == "clear-cache" {
		ctrl.ClearAddressCache()
		display.Info("Cleared cached device address")
		return nil
	}

	display.Info("Connecting to device...")
	if !ctrl.Connect(ctx) {
		display.Error("Failed to connect to device")
		return ErrOperationFailed
	}
	defer func() {
		if ctrl.IsConnected() {
			ctrl.Disconnect(context.Background())
		}
	}()

	switch action {
	case "start":
		display.Result("start", ctrl.Start(ctx))
	case "pause":
		display.Result("pause", ctrl.Pause(ctx))
	case "stop":
		if !stopBelt(ctx, ctrl, display) {
			return ErrOperationFailed
		}
	case "status":
		select {
		case <-time.After(statusDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
		display.StatusTable(ctrl.Status())
	}
	return nil
}
