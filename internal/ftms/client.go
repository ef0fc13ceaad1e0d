package ftms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sgrimee/fitctrl/internal/gatt"
)

// Conn is the slice of the transport layer the protocol client needs. A
// *gatt.Connection satisfies it.
type Conn interface {
	HasCharacteristic(uuid string) bool
	ReadCharacteristic(uuid string) ([]byte, error)
	WriteCharacteristic(uuid string, data []byte, withResponse bool) error
	Subscribe(uuid string, indicate bool, handler gatt.NotificationHandler) error
	Unsubscribe(uuid string, indicate bool) error
	Disconnected() <-chan struct{}
	IsConnected() bool
	OnDisconnect(fn func())
	Close() error
}

// Snapshot is the last-known machine state, merged across notifications.
type Snapshot struct {
	Status    TrainingStatus
	HasStatus bool
	Speed     float64 // km/h
	Distance  int     // m
	Elapsed   int     // s
	Steps     int
	Calories  int // kcal
}

// deviceInfoChars maps Device Information Service characteristics to the
// keys exposed by DeviceInfo.
var deviceInfoChars = []struct {
	uuid string
	key  string
}{
	{ManufacturerNameUUID, "manufacturer"},
	{ModelNumberUUID, "model_number"},
	{SerialNumberUUID, "serial_number"},
	{HardwareRevisionUUID, "hardware_revision"},
	{FirmwareRevisionUUID, "firmware_revision"},
	{SoftwareRevisionUUID, "software_revision"},
}

// Client is one FTMS session over an established connection. It owns the
// notification subscriptions, merges telemetry into a last-known snapshot,
// and serializes Control Point round-trips.
type Client struct {
	conn            Conn
	logger          *logrus.Logger
	responseTimeout time.Duration

	ctrlMu sync.Mutex // one control round-trip at a time

	pendMu sync.Mutex
	pendOp OpCode
	pendCh chan ResultCode

	stateMu sync.RWMutex
	data    TreadmillData
	status  *TrainingStatus
	name    string
	info    map[string]string

	onUpdate atomic.Value // func(Snapshot)
}

// NewClient wraps an established connection. Prepare must be called before
// any control operation.
func NewClient(conn Conn, responseTimeout time.Duration, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		conn:            conn,
		logger:          logger,
		responseTimeout: responseTimeout,
		info:            make(map[string]string),
	}
}

// Prepare turns the raw connection into a live treadmill session: verifies
// the FTMS characteristics exist, reads the device identity, subscribes to
// telemetry, and requests control of the machine.
func (c *Client) Prepare(ctx context.Context) error {
	if !c.conn.HasCharacteristic(TreadmillDataUUID) {
		return fmt.Errorf("peripheral has no treadmill data characteristic (%s)", TreadmillDataUUID)
	}
	if !c.conn.HasCharacteristic(ControlPointUUID) {
		return fmt.Errorf("peripheral has no fitness machine control point (%s)", ControlPointUUID)
	}

	c.readDeviceStrings()

	if err := c.conn.Subscribe(TreadmillDataUUID, false, c.handleTreadmillData); err != nil {
		return fmt.Errorf("failed to subscribe to treadmill data: %w", err)
	}
	if c.conn.HasCharacteristic(TrainingStatusUUID) {
		if err := c.conn.Subscribe(TrainingStatusUUID, false, c.handleTrainingStatus); err != nil {
			c.logger.WithField("error", err).Warn("Failed to subscribe to training status, continuing without it")
		}
	}
	if err := c.conn.Subscribe(ControlPointUUID, true, c.handleControlResponse); err != nil {
		return fmt.Errorf("failed to subscribe to control point indications: %w", err)
	}

	result, err := c.roundTrip(ctx, OpRequestControl, nil)
	switch {
	case err != nil && errors.Is(err, gatt.ErrTimeout):
		// Some treadmills accept control silently and never indicate.
		c.logger.Warn("No response to control request, assuming control granted")
	case err != nil:
		return fmt.Errorf("request control failed: %w", err)
	case result == ResultSuccess:
		c.logger.Debug("Machine control granted")
	case result == ResultNotPermitted:
		c.logger.Warn("Machine control not permitted, commands may be rejected")
	default:
		return fmt.Errorf("request control rejected: %s", result)
	}
	return nil
}

// readDeviceStrings reads the GAP name and Device Information strings.
// Every read is best-effort; absent characteristics are skipped.
func (c *Client) readDeviceStrings() {
	info := make(map[string]string)

	if name := c.readString(DeviceNameUUID); name != "" {
		info["device_name"] = name
		c.stateMu.Lock()
		c.name = name
		c.stateMu.Unlock()
		c.logger.WithField("name", name).Debug("Resolved device name from GAP")
	}

	for _, char := range deviceInfoChars {
		if value := c.readString(char.uuid); value != "" {
			info[char.key] = value
		}
	}

	c.stateMu.Lock()
	c.info = info
	c.stateMu.Unlock()
}

func (c *Client) readString(uuid string) string {
	if !c.conn.HasCharacteristic(uuid) {
		return ""
	}
	data, err := c.conn.ReadCharacteristic(uuid)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"char_uuid": uuid,
			"error":     err,
		}).Debug("Failed to read device string")
		return ""
	}
	value := strings.TrimRight(string(data), "\x00")
	return strings.TrimSpace(value)
}

// Start starts or resumes the belt.
func (c *Client) Start(ctx context.Context) (ResultCode, error) {
	return c.roundTrip(ctx, OpStartOrResume, nil)
}

// Stop stops the belt.
func (c *Client) Stop(ctx context.Context) (ResultCode, error) {
	return c.roundTrip(ctx, OpStopOrPause, []byte{stopParamStop})
}

// Pause pauses the belt.
func (c *Client) Pause(ctx context.Context) (ResultCode, error) {
	return c.roundTrip(ctx, OpStopOrPause, []byte{stopParamPause})
}

// SetTargetSpeed sets the target belt speed in km/h.
func (c *Client) SetTargetSpeed(ctx context.Context, kmh float64) (ResultCode, error) {
	return c.roundTrip(ctx, OpSetTargetSpeed, speedParam(kmh))
}

// roundTrip writes one Control Point request and blocks until the matching
// response indication, the response timeout, cancellation, or disconnect.
func (c *Client) roundTrip(ctx context.Context, op OpCode, param []byte) (ResultCode, error) {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	ch := make(chan ResultCode, 1)
	c.pendMu.Lock()
	c.pendOp = op
	c.pendCh = ch
	c.pendMu.Unlock()
	defer func() {
		c.pendMu.Lock()
		c.pendCh = nil
		c.pendMu.Unlock()
	}()

	request := append([]byte{byte(op)}, param...)
	if err := c.conn.WriteCharacteristic(ControlPointUUID, request, true); err != nil {
		return ResultFailed, fmt.Errorf("control point write failed for %s: %w", op, err)
	}

	c.logger.WithField("opcode", op.String()).Debug("Control point request sent")

	waitCtx, cancel := context.WithTimeout(ctx, c.responseTimeout)
	defer cancel()

	select {
	case result := <-ch:
		c.logger.WithFields(logrus.Fields{
			"opcode": op.String(),
			"result": result.String(),
		}).Info("Control point response")
		return result, nil
	case <-waitCtx.Done():
		if errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
			return ResultFailed, fmt.Errorf("no control point response for %s: %w", op, gatt.ErrTimeout)
		}
		return ResultFailed, waitCtx.Err()
	case <-c.conn.Disconnected():
		return ResultFailed, gatt.ErrNotConnected
	}
}

// handleControlResponse runs on the notification goroutine and resolves the
// pending round-trip, if the response matches it.
func (c *Client) handleControlResponse(data []byte) {
	resp, err := parseControlResponse(data)
	if err != nil {
		c.logger.WithField("error", err).Warn("Dropping malformed control point indication")
		return
	}

	c.pendMu.Lock()
	defer c.pendMu.Unlock()
	if c.pendCh == nil || resp.RequestOp != c.pendOp {
		c.logger.WithFields(logrus.Fields{
			"opcode": resp.RequestOp.String(),
			"result": resp.Result.String(),
		}).Warn("Discarding unsolicited control point response")
		return
	}
	select {
	case c.pendCh <- resp.Result:
	default:
	}
}

// handleTreadmillData runs on the notification goroutine.
func (c *Client) handleTreadmillData(data []byte) {
	frame, err := ParseTreadmillData(data)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"error": err,
			"bytes": len(data),
		}).Warn("Dropping malformed treadmill data notification")
		return
	}

	c.stateMu.Lock()
	c.data.merge(frame)
	snap := c.snapshotLocked()
	c.stateMu.Unlock()

	c.notifyUpdate(snap)
}

// handleTrainingStatus runs on the notification goroutine.
func (c *Client) handleTrainingStatus(data []byte) {
	status, err := ParseTrainingStatus(data)
	if err != nil {
		c.logger.WithField("error", err).Warn("Dropping malformed training status notification")
		return
	}

	c.stateMu.Lock()
	c.status = &status
	snap := c.snapshotLocked()
	c.stateMu.Unlock()

	c.logger.WithField("status", status.String()).Debug("Training status changed")
	c.notifyUpdate(snap)
}

// OnUpdate registers fn to receive a snapshot after every decoded
// notification. fn runs on the notification goroutine and must not block.
func (c *Client) OnUpdate(fn func(Snapshot)) {
	c.onUpdate.Store(fn)
}

// OnDisconnect registers fn to run when the transport reports the link
// dropped.
func (c *Client) OnDisconnect(fn func()) {
	c.conn.OnDisconnect(fn)
}

func (c *Client) notifyUpdate(snap Snapshot) {
	if fn, ok := c.onUpdate.Load().(func(Snapshot)); ok && fn != nil {
		fn(snap)
	}
}

func (c *Client) snapshotLocked() Snapshot {
	snap := Snapshot{}
	if c.status != nil {
		snap.Status = *c.status
		snap.HasStatus = true
	}
	if c.data.SpeedInstant != nil {
		snap.Speed = *c.data.SpeedInstant
	}
	if c.data.DistanceTotal != nil {
		snap.Distance = *c.data.DistanceTotal
	}
	if c.data.TimeElapsed != nil {
		snap.Elapsed = *c.data.TimeElapsed
	}
	if c.data.StepCount != nil {
		snap.Steps = *c.data.StepCount
	}
	if c.data.EnergyTotal != nil {
		snap.Calories = *c.data.EnergyTotal
	}
	return snap
}

// Snapshot returns the current last-known state without touching the radio.
func (c *Client) Snapshot() Snapshot {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.snapshotLocked()
}

// SpeedInstant returns the last-known speed in km/h, zero if never reported.
func (c *Client) SpeedInstant() float64 {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.data.SpeedInstant == nil {
		return 0
	}
	return *c.data.SpeedInstant
}

// DistanceTotal returns the last-known total distance in meters.
func (c *Client) DistanceTotal() int {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.data.DistanceTotal == nil {
		return 0
	}
	return *c.data.DistanceTotal
}

// TimeElapsed returns the last-known elapsed time in seconds.
func (c *Client) TimeElapsed() int {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.data.TimeElapsed == nil {
		return 0
	}
	return *c.data.TimeElapsed
}

// StepCount returns the last-known cumulative step count.
func (c *Client) StepCount() int {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.data.StepCount == nil {
		return 0
	}
	return *c.data.StepCount
}

// EnergyTotal returns the last-known total energy in kcal.
func (c *Client) EnergyTotal() int {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.data.EnergyTotal == nil {
		return 0
	}
	return *c.data.EnergyTotal
}

// TrainingStatus returns the last-reported training status. ok is false
// until the device reports one.
func (c *Client) TrainingStatus() (status TrainingStatus, ok bool) {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	if c.status == nil {
		return 0, false
	}
	return *c.status, true
}

// Name returns the GAP device name, empty if unreadable.
func (c *Client) Name() string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.name
}

// DeviceInfo returns a copy of the identity strings read at Prepare time.
func (c *Client) DeviceInfo() map[string]string {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	info := make(map[string]string, len(c.info))
	for k, v := range c.info {
		info[k] = v
	}
	return info
}

// IsConnected reports whether the underlying connection is alive.
func (c *Client) IsConnected() bool {
	return c.conn.IsConnected()
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
