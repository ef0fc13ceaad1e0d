package treadmill

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sgrimee/fitctrl/internal/config"
	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/gatt"
	"github.com/sgrimee/fitctrl/internal/groutine"
)

const (
	// queueCapacity bounds the telemetry pipeline; a full queue drops the
	// incoming frame rather than block the notification callback.
	queueCapacity = 10

	// updateWait is how long one drain attempt waits before re-checking
	// the context.
	updateWait = 500 * time.Millisecond
)

// Cache persists the last-connected device address between runs.
type Cache interface {
	Load() (address string, ok bool)
	Save(address string)
	Clear()
}

// Controller owns the treadmill session: discovery, connection lifecycle,
// control commands, and the telemetry pipeline. All operations are safe for
// concurrent use; session mutations are serialized.
type Controller struct {
	cfg       *config.Config
	logger    *logrus.Logger
	transport Transport
	cache     Cache

	mu      sync.Mutex
	machine Machine
	device  *gatt.Advertisement
	running atomic.Bool

	queue *RingChannel[Telemetry]

	updatesOnce sync.Once
	updates     chan Telemetry
	wg          sync.WaitGroup

	onDisconnect atomic.Value // func()
}

// NewController creates a disconnected controller.
func NewController(cfg *config.Config, transport Transport, cache Cache, logger *logrus.Logger) *Controller {
	if logger == nil {
		logger = logrus.New()
	}
	return &Controller{
		cfg:       cfg,
		logger:    logger,
		transport: transport,
		cache:     cache,
		queue:     NewRingChannel[Telemetry](queueCapacity),
	}
}

// Discover scans for a compatible treadmill and records the first match for
// the next Connect. Scan problems are logged and reported as not-found.
func (c *Controller) Discover(ctx context.Context) bool {
	c.logger.WithField("timeout", c.cfg.ScanTimeout).Info("Scanning for FTMS-compatible devices")

	adv, found, err := c.transport.ScanFirst(ctx, c.cfg.ScanTimeout, c.matches)
	if err != nil {
		c.logger.WithField("error", err).Error("Discovery failed")
		return false
	}
	if !found {
		c.logger.Warn("No FTMS-compatible devices found")
		return false
	}

	c.mu.Lock()
	c.device = &adv
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"name":    adv.Name,
		"address": adv.Address,
	}).Info("Found FTMS device")
	return true
}

// matches is the discovery filter: an advertised name containing any
// allow-list token, or an advertised FTMS service.
func (c *Controller) matches(adv gatt.Advertisement) bool {
	name := strings.ToUpper(adv.Name)
	if name != "" {
		for _, token := range c.cfg.DeviceNames {
			if strings.Contains(name, strings.ToUpper(token)) {
				return true
			}
		}
	}
	return adv.HasService(ftms.ServiceUUID)
}

// Connect establishes a treadmill session, trying the cached address before
// falling back to discovery. Every failure path logs, tears down any partial
// connection, and leaves the controller disconnected.
func (c *Controller) Connect(ctx context.Context) bool {
	c.mu.Lock()
	alreadyConnected := c.machine != nil
	c.mu.Unlock()
	if alreadyConnected {
		c.logger.Warn("Already connected")
		return true
	}

	if address, ok := c.cache.Load(); ok {
		c.logger.WithField("address", address).Info("Trying cached device address")
		machine, err := c.connectAddress(ctx, address)
		if err == nil {
			c.adopt(machine, address)
			return true
		}
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Warn("Cached address failed, falling back to scanning")
	}

	if !c.Discover(ctx) {
		return false
	}

	c.mu.Lock()
	device := *c.device
	c.mu.Unlock()

	c.logger.Info("Connecting to discovered device")
	machine, err := c.connectAdvertisement(ctx, device)
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": device.Address,
			"error":   err,
		}).Error("Connection failed")
		return false
	}
	c.adopt(machine, device.Address)
	return true
}

// connectAddress dials address and prepares a session on the connection.
func (c *Controller) connectAddress(ctx context.Context, address string) (Machine, error) {
	conn, err := c.transport.Dial(ctx, address, c.cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return c.prepareMachine(ctx, conn)
}

// connectAdvertisement dials a discovered peripheral and prepares a session.
func (c *Controller) connectAdvertisement(ctx context.Context, adv gatt.Advertisement) (Machine, error) {
	conn, err := c.transport.DialAdvertisement(ctx, adv, c.cfg.ConnectTimeout)
	if err != nil {
		return nil, err
	}
	return c.prepareMachine(ctx, conn)
}

// prepareMachine builds the protocol session, closing the connection if the
// FTMS handshake fails.
func (c *Controller) prepareMachine(ctx context.Context, conn ftms.Conn) (Machine, error) {
	machine, err := MachineFactory(ctx, conn, c.cfg.ResponseTimeout, c.logger)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	return machine, nil
}

// adopt installs a prepared machine as the live session and persists its
// address for the next run.
func (c *Controller) adopt(machine Machine, address string) {
	machine.OnUpdate(c.handleUpdate)
	machine.OnDisconnect(c.handleDeviceDisconnect)

	c.mu.Lock()
	c.machine = machine
	c.mu.Unlock()
	c.running.Store(true)

	c.cache.Save(address)
	c.logger.WithFields(logrus.Fields{
		"name":    machine.Name(),
		"address": address,
	}).Info("Connected to treadmill")
}

// Disconnect tears the session down. It is a no-op when not connected;
// close errors are logged, never returned.
func (c *Controller) Disconnect(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.machine == nil {
		return
	}

	c.logger.Info("Disconnecting")
	// Clear running before teardown so the enqueue callback observes it
	// even if Close stalls.
	c.running.Store(false)
	if err := c.machine.Close(); err != nil {
		c.logger.WithField("error", err).Warn("Disconnect failed")
	}
	c.machine = nil
	// Undelivered frames must not survive into the next session.
	c.queue.Flush()
	c.logger.Info("Disconnected")
}

// Start starts or resumes the belt.
func (c *Controller) Start(ctx context.Context) ftms.ResultCode {
	machine := c.currentMachine()
	if machine == nil {
		c.logger.Error("Cannot start: not connected")
		return ftms.ResultFailed
	}
	result, err := machine.Start(ctx)
	if err != nil {
		c.logger.WithField("error", err).Error("Start failed")
		return ftms.ResultFailed
	}
	return result
}

// Stop stops the belt.
func (c *Controller) Stop(ctx context.Context) ftms.ResultCode {
	machine := c.currentMachine()
	if machine == nil {
		c.logger.Error("Cannot stop: not connected")
		return ftms.ResultFailed
	}
	result, err := machine.Stop(ctx)
	if err != nil {
		c.logger.WithField("error", err).Error("Stop failed")
		return ftms.ResultFailed
	}
	return result
}

// Pause pauses the belt.
func (c *Controller) Pause(ctx context.Context) ftms.ResultCode {
	machine := c.currentMachine()
	if machine == nil {
		c.logger.Error("Cannot pause: not connected")
		return ftms.ResultFailed
	}
	result, err := machine.Pause(ctx)
	if err != nil {
		c.logger.WithField("error", err).Error("Pause failed")
		return ftms.ResultFailed
	}
	return result
}

// SetSpeed sets the belt speed in km/h. Speeds outside the configured range
// are rejected before touching the device.
func (c *Controller) SetSpeed(ctx context.Context, kmh float64) ftms.ResultCode {
	machine := c.currentMachine()
	if machine == nil {
		c.logger.Error("Cannot set speed: not connected")
		return ftms.ResultFailed
	}
	if kmh < c.cfg.SpeedMin || kmh > c.cfg.SpeedMax {
		c.logger.WithFields(logrus.Fields{
			"speed": kmh,
			"min":   c.cfg.SpeedMin,
			"max":   c.cfg.SpeedMax,
		}).Error("Requested speed out of range")
		return ftms.ResultInvalidParameter
	}
	result, err := machine.SetTargetSpeed(ctx, kmh)
	if err != nil {
		c.logger.WithField("error", err).Error("Set speed failed")
		return ftms.ResultFailed
	}
	return result
}

// Status returns the last-known machine state without touching the radio.
func (c *Controller) Status() Telemetry {
	machine := c.currentMachine()
	if machine == nil {
		return Telemetry{Status: StatusDisconnected}
	}
	return fromSnapshot(machine.Snapshot())
}

// IsConnected reports whether a live session exists.
func (c *Controller) IsConnected() bool {
	machine := c.currentMachine()
	return machine != nil && machine.IsConnected()
}

// Running reports whether the session accepts telemetry. It goes false at
// the start of teardown, before the transport is torn down.
func (c *Controller) Running() bool {
	return c.running.Load()
}

// Name returns the connected device's GAP name, empty when disconnected.
func (c *Controller) Name() string {
	if machine := c.currentMachine(); machine != nil {
		return machine.Name()
	}
	return ""
}

// DeviceInfo returns the identity strings of the connected device, nil when
// disconnected.
func (c *Controller) DeviceInfo() map[string]string {
	if machine := c.currentMachine(); machine != nil {
		return machine.DeviceInfo()
	}
	return nil
}

// TrainingStatus returns the last reported FTMS training status. ok is
// false when disconnected or before the device reports one.
func (c *Controller) TrainingStatus() (ftms.TrainingStatus, bool) {
	if machine := c.currentMachine(); machine != nil {
		return machine.TrainingStatus()
	}
	return 0, false
}

// QueueDepth returns the number of telemetry frames waiting in the pipeline.
func (c *Controller) QueueDepth() int {
	return c.queue.Len()
}

// PipelineMetrics returns the telemetry pipeline counters.
func (c *Controller) PipelineMetrics() Metrics {
	return c.queue.Metrics()
}

// ClearAddressCache drops the persisted device address, forcing rediscovery
// on the next connect.
func (c *Controller) ClearAddressCache() {
	c.cache.Clear()
}

// OnDisconnect registers fn to run when the device drops the link. It does
// not fire on a local Disconnect.
func (c *Controller) OnDisconnect(fn func()) {
	c.onDisconnect.Store(fn)
}

func (c *Controller) currentMachine() Machine {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.machine
}

// handleUpdate runs on the notification goroutine; it must never block.
// Frames arriving while not running, and frames that find the queue full,
// are dropped.
func (c *Controller) handleUpdate(snap ftms.Snapshot) {
	if !c.running.Load() {
		return
	}
	c.queue.TrySend(fromSnapshot(snap))
}

// handleDeviceDisconnect runs when the transport reports the link dropped.
// A local Disconnect has already cleared running, making this a no-op.
func (c *Controller) handleDeviceDisconnect() {
	if !c.running.Swap(false) {
		return
	}

	c.mu.Lock()
	c.machine = nil
	c.mu.Unlock()
	c.queue.Flush()

	c.logger.Warn("Device disconnected")

	if fn, ok := c.onDisconnect.Load().(func()); ok && fn != nil {
		defer func() {
			if r := recover(); r != nil {
				c.logger.WithField("panic", r).Error("Disconnect callback panicked")
			}
		}()
		fn()
	}
}

// Updates starts the telemetry drain loop and returns its output stream.
// The stream outlives any single session: frames flow while a session is
// running, the stream idles while disconnected, and it closes only when ctx
// is canceled. Subsequent calls return the same stream.
func (c *Controller) Updates(ctx context.Context) <-chan Telemetry {
	c.updatesOnce.Do(func() {
		out := make(chan Telemetry)
		c.updates = out
		c.wg.Add(1)
		groutine.Go(ctx, "treadmill-updates", func(ctx context.Context) {
			defer c.wg.Done()
			defer close(out)
			defer c.logger.Debugf("%s: exiting", groutine.Name(ctx))
			c.drainLoop(ctx, out)
		})
	})
	return c.updates
}

// Wait blocks until the drain loop has exited. It returns immediately when
// Updates was never called.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// drainLoop moves frames from the bounded queue to the consumer. A wait
// timeout is not an error; the device may simply be idle or disconnected.
func (c *Controller) drainLoop(ctx context.Context, out chan<- Telemetry) {
	for {
		frame, ok := c.queue.ReceiveTimeout(ctx, updateWait)
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		select {
		case out <- frame:
		case <-ctx.Done():
			return
		}
	}
}
