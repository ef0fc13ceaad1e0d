// Package treadmill is the session core. The Controller owns the device
// lifecycle (discover, connect via cached address or scan, disconnect),
// forwards control commands to the FTMS session, and moves telemetry frames
// from the BLE notification callback to the consumer through a bounded
// lossy queue so the radio path never blocks on a slow display.
package treadmill
