package gatt

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/sgrimee/fitctrl/internal/groutine"
)

// NotificationHandler receives characteristic notification payloads. Handlers
// run on the BLE delivery goroutine and must not block.
type NotificationHandler func(data []byte)

type subscription struct {
	char     *ble.Characteristic
	indicate bool
}

func subKey(uuid string, indicate bool) string {
	return fmt.Sprintf("%s:%v", uuid, indicate)
}

// Connection is a live GATT connection to one peripheral.
type Connection struct {
	client  ble.Client
	profile *ble.Profile
	logger  *logrus.Logger

	writeMu sync.Mutex
	mu      sync.RWMutex
	closed  bool

	subs *hashmap.Map[string, *subscription]

	done     chan struct{} // closed on any teardown, local or remote
	stop     chan struct{} // stops the disconnect monitor on local Close
	doneOnce sync.Once

	onDisconnect atomic.Value // func()
}

func newConnection(client ble.Client, profile *ble.Profile, logger *logrus.Logger) *Connection {
	c := &Connection{
		client:  client,
		profile: profile,
		logger:  logger,
		subs:    hashmap.New[string, *subscription](),
		done:    make(chan struct{}),
		stop:    make(chan struct{}),
	}

	// Watch the client-level disconnect channel so peer-initiated drops are
	// observed without polling.
	groutine.Go(context.Background(), "gatt-connection-monitor", func(ctx context.Context) {
		select {
		case <-client.Disconnected():
			c.logger.Warn("Transport reported disconnection")
			c.doneOnce.Do(func() { close(c.done) })
			if fn, ok := c.onDisconnect.Load().(func()); ok && fn != nil {
				fn()
			}
		case <-c.stop:
		}
		c.logger.Debugf("%s: exiting", groutine.Name(ctx))
	})
	return c
}

// OnDisconnect registers fn to run once if the transport reports the link
// dropped. A local Close does not trigger it.
func (c *Connection) OnDisconnect(fn func()) {
	c.onDisconnect.Store(fn)
}

// Disconnected returns a channel closed when the connection is torn down,
// whether locally or by the peer.
func (c *Connection) Disconnected() <-chan struct{} {
	return c.done
}

// Address returns the peripheral's transport address.
func (c *Connection) Address() string {
	return c.client.Addr().String()
}

// IsConnected reports whether the connection is still usable.
func (c *Connection) IsConnected() bool {
	select {
	case <-c.done:
		return false
	default:
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

// HasCharacteristic reports whether the discovered profile contains the
// characteristic UUID.
func (c *Connection) HasCharacteristic(uuid string) bool {
	_, err := c.findCharacteristic(uuid)
	return err == nil
}

// findCharacteristic locates a characteristic in the discovered profile.
// UUIDs are normalized on both sides so short and long forms compare equal.
func (c *Connection) findCharacteristic(uuid string) (*ble.Characteristic, error) {
	target := NormalizeUUID(uuid)
	for _, svc := range c.profile.Services {
		for _, char := range svc.Characteristics {
			if NormalizeUUID(char.UUID.String()) == target {
				return char, nil
			}
		}
	}
	return nil, &NotFoundError{Resource: "characteristic", UUID: uuid}
}

// ReadCharacteristic reads the current value of a characteristic.
func (c *Connection) ReadCharacteristic(uuid string) ([]byte, error) {
	client, err := c.liveClient()
	if err != nil {
		return nil, err
	}

	char, err := c.findCharacteristic(uuid)
	if err != nil {
		return nil, err
	}

	data, err := client.ReadCharacteristic(char)
	if err != nil {
		return nil, NormalizeError(err)
	}
	return data, nil
}

// WriteCharacteristic writes data to a characteristic. withResponse selects
// an acknowledged write. Writes are serialized; BLE stacks reject
// interleaved ATT requests.
func (c *Connection) WriteCharacteristic(uuid string, data []byte, withResponse bool) error {
	client, err := c.liveClient()
	if err != nil {
		return err
	}

	char, err := c.findCharacteristic(uuid)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return NormalizeError(client.WriteCharacteristic(char, data, !withResponse))
}

// Subscribe registers handler for notifications (or indications) from the
// characteristic.
func (c *Connection) Subscribe(uuid string, indicate bool, handler NotificationHandler) error {
	client, err := c.liveClient()
	if err != nil {
		return err
	}

	char, err := c.findCharacteristic(uuid)
	if err != nil {
		return err
	}

	err = NormalizeError(client.Subscribe(char, indicate, func(data []byte) {
		handler(data)
	}))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"char_uuid": uuid,
			"indicate":  indicate,
			"error":     err,
		}).Error("Failed to subscribe to characteristic notifications")
		return err
	}

	c.subs.Set(subKey(NormalizeUUID(uuid), indicate), &subscription{char: char, indicate: indicate})
	c.logger.WithFields(logrus.Fields{
		"char_uuid": uuid,
		"indicate":  indicate,
	}).Info("Subscribed to characteristic notifications")
	return nil
}

// Unsubscribe stops notifications (or indications) from the characteristic.
func (c *Connection) Unsubscribe(uuid string, indicate bool) error {
	client, err := c.liveClient()
	if err != nil {
		return err
	}

	char, err := c.findCharacteristic(uuid)
	if err != nil {
		return err
	}

	if err := NormalizeError(client.Unsubscribe(char, indicate)); err != nil {
		return err
	}
	c.subs.Del(subKey(NormalizeUUID(uuid), indicate))
	return nil
}

// liveClient snapshots the client if the connection is still usable.
func (c *Connection) liveClient() (ble.Client, error) {
	select {
	case <-c.done:
		return nil, ErrNotConnected
	default:
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, ErrNotConnected
	}
	return c.client, nil
}

// Close tears down the connection: stops the monitor, unsubscribes
// best-effort, and cancels the link. Idempotent.
func (c *Connection) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.logger.Debug("Close called but already disconnected")
		return nil
	}
	c.closed = true
	client := c.client
	c.mu.Unlock()

	close(c.stop)
	c.doneOnce.Do(func() { close(c.done) })

	var unsubscribeErrors []string
	c.subs.Range(func(key string, sub *subscription) bool {
		if err := client.Unsubscribe(sub.char, sub.indicate); err != nil {
			unsubscribeErrors = append(unsubscribeErrors, fmt.Sprintf("%s: %v", key, err))
		}
		return true
	})
	if len(unsubscribeErrors) > 0 {
		c.logger.WithField("errors", strings.Join(unsubscribeErrors, "; ")).Debug("Failed to unsubscribe from some characteristics during close")
	}

	err := client.CancelConnection()
	if err != nil {
		c.logger.WithField("error", err).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	c.logger.Info("BLE device disconnected successfully")
	return nil
}
