//go:build test

package gatt

import (
	"context"
	"io"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// testLogger returns a logger that swallows output so test runs stay quiet.
func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeAdvertisement implements ble.Advertisement for the fields the scan
// path reads. The embedded interface panics on anything else, which is the
// point: touching more of the advertisement is a bug.
type fakeAdvertisement struct {
	ble.Advertisement
	name     string
	addr     string
	services []ble.UUID
	rssi     int
}

func (a fakeAdvertisement) LocalName() string    { return a.name }
func (a fakeAdvertisement) Addr() ble.Addr       { return ble.NewAddr(a.addr) }
func (a fakeAdvertisement) Services() []ble.UUID { return a.services }
func (a fakeAdvertisement) RSSI() int            { return a.rssi }

// fakeDevice implements ble.Device with pluggable Scan and Dial behavior.
type fakeDevice struct {
	ble.Device
	scan func(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	dial func(ctx context.Context, a ble.Addr) (ble.Client, error)
}

func (d *fakeDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	return d.scan(ctx, allowDup, h)
}

func (d *fakeDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	return d.dial(ctx, a)
}

func installFakeDevice(dev *fakeDevice) {
	DeviceFactory = func() (ble.Device, error) { return dev, nil }
}

type fakeWrite struct {
	uuid  string
	data  []byte
	noRsp bool
}

// fakeClient implements the slice of ble.Client the connection layer uses:
// profile discovery, characteristic reads and writes, subscriptions, and the
// disconnect channel.
type fakeClient struct {
	ble.Client

	addr    string
	profile *ble.Profile

	discoverErr  error
	readErr      error
	writeErr     error
	subscribeErr error
	cancelErr    error

	disconnected chan struct{}

	mu          sync.Mutex
	readData    map[string][]byte
	writes      []fakeWrite
	handlers    map[string]ble.NotificationHandler
	cancelCalls int
}

func newFakeClient(addr string, profile *ble.Profile) *fakeClient {
	return &fakeClient{
		addr:         addr,
		profile:      profile,
		disconnected: make(chan struct{}),
		readData:     make(map[string][]byte),
		handlers:     make(map[string]ble.NotificationHandler),
	}
}

func (c *fakeClient) Addr() ble.Addr { return ble.NewAddr(c.addr) }

func (c *fakeClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	if c.discoverErr != nil {
		return nil, c.discoverErr
	}
	return c.profile, nil
}

func (c *fakeClient) ReadCharacteristic(char *ble.Characteristic) ([]byte, error) {
	if c.readErr != nil {
		return nil, c.readErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	data, ok := c.readData[NormalizeUUID(char.UUID.String())]
	if !ok {
		return nil, nil
	}
	return data, nil
}

func (c *fakeClient) WriteCharacteristic(char *ble.Characteristic, data []byte, noRsp bool) error {
	if c.writeErr != nil {
		return c.writeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, fakeWrite{
		uuid:  NormalizeUUID(char.UUID.String()),
		data:  append([]byte(nil), data...),
		noRsp: noRsp,
	})
	return nil
}

func (c *fakeClient) Subscribe(char *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	if c.subscribeErr != nil {
		return c.subscribeErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[NormalizeUUID(char.UUID.String())] = h
	return nil
}

func (c *fakeClient) Unsubscribe(char *ble.Characteristic, ind bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.handlers, NormalizeUUID(char.UUID.String()))
	return nil
}

func (c *fakeClient) CancelConnection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelCalls++
	return c.cancelErr
}

func (c *fakeClient) Disconnected() <-chan struct{} { return c.disconnected }

// push delivers a notification to the handler subscribed on uuid, if any.
func (c *fakeClient) push(uuid string, data []byte) bool {
	c.mu.Lock()
	h, ok := c.handlers[NormalizeUUID(uuid)]
	c.mu.Unlock()
	if !ok {
		return false
	}
	h(data)
	return true
}

func (c *fakeClient) setReadData(uuid string, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readData[NormalizeUUID(uuid)] = data
}

func (c *fakeClient) writeLog() []fakeWrite {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]fakeWrite(nil), c.writes...)
}

func (c *fakeClient) subscribed(uuid string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[NormalizeUUID(uuid)]
	return ok
}

func (c *fakeClient) cancelCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelCalls
}

// fitnessProfile builds a profile shaped like a treadmill: GAP, Device
// Information, and Fitness Machine services.
func fitnessProfile() *ble.Profile {
	return &ble.Profile{
		Services: []*ble.Service{
			{
				UUID: ble.UUID16(0x1800),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2a00)},
				},
			},
			{
				UUID: ble.UUID16(0x180a),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2a29)},
					{UUID: ble.UUID16(0x2a24)},
				},
			},
			{
				UUID: ble.UUID16(0x1826),
				Characteristics: []*ble.Characteristic{
					{UUID: ble.UUID16(0x2acd)},
					{UUID: ble.UUID16(0x2ad3)},
					{UUID: ble.UUID16(0x2ad9)},
				},
			},
		},
	}
}
