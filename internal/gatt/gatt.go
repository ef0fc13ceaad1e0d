// Package gatt is the BLE transport layer: scanning for advertisements and
// talking GATT to a connected peripheral on top of go-ble/ble.
package gatt

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
)

// Advertisement is a normalized snapshot of one BLE advertisement. It is the
// only device-descriptor shape upper layers see; no library-specific
// attribute probing happens past this point.
type Advertisement struct {
	Address  string
	Name     string
	Services []string // normalized UUIDs
	RSSI     int
}

// HasService reports whether the advertisement carries the given service UUID.
func (a Advertisement) HasService(uuid string) bool {
	target := NormalizeUUID(uuid)
	for _, s := range a.Services {
		if s == target {
			return true
		}
	}
	return false
}

func newAdvertisement(a ble.Advertisement) Advertisement {
	services := make([]string, 0, len(a.Services()))
	for _, u := range a.Services() {
		services = append(services, NormalizeUUID(u.String()))
	}
	return Advertisement{
		Address:  a.Addr().String(),
		Name:     a.LocalName(),
		Services: services,
		RSSI:     a.RSSI(),
	}
}

// Transport owns the platform BLE device handle shared by scanning and
// dialing. One Transport per process is expected.
type Transport struct {
	logger *logrus.Logger

	mu  sync.Mutex
	dev ble.Device
}

// NewTransport creates a transport. A nil logger gets a default one.
func NewTransport(logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	return &Transport{logger: logger}
}

// device lazily creates the platform BLE device via DeviceFactory.
func (t *Transport) device() (ble.Device, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev != nil {
		return t.dev, nil
	}
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", err)
	}
	ble.SetDefaultDevice(dev)
	t.dev = dev
	return dev, nil
}

// ScanFirst scans for up to timeout and stops at the first advertisement for
// which match returns true. The second result reports whether a match was
// found; hitting the timeout without one is not an error.
func (t *Transport) ScanFirst(ctx context.Context, timeout time.Duration, match func(Advertisement) bool) (Advertisement, bool, error) {
	dev, err := t.device()
	if err != nil {
		return Advertisement{}, false, err
	}

	scanCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	t.logger.WithField("timeout", timeout).Info("Starting BLE scan...")

	var (
		hitMu sync.Mutex
		hit   Advertisement
		found bool
	)
	handler := func(a ble.Advertisement) {
		adv := newAdvertisement(a)

		hitMu.Lock()
		defer hitMu.Unlock()
		if found {
			return
		}
		t.logger.WithFields(logrus.Fields{
			"name":     adv.Name,
			"address":  adv.Address,
			"rssi":     adv.RSSI,
			"services": shortServiceList(adv.Services),
		}).Debug("Advertisement received")
		if match(adv) {
			found = true
			hit = adv
			cancel()
		}
	}

	err = dev.Scan(scanCtx, false, handler)
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return Advertisement{}, false, fmt.Errorf("scan failed: %w", err)
	}

	hitMu.Lock()
	defer hitMu.Unlock()
	if found {
		t.logger.WithFields(logrus.Fields{
			"name":    hit.Name,
			"address": hit.Address,
		}).Info("Matching device found")
	} else {
		t.logger.Warn("BLE scan completed without a match")
	}
	return hit, found, nil
}

// Dial connects to the peripheral at address and discovers its full GATT
// profile. The timeout covers the dial; profile discovery rides on the
// established link.
func (t *Transport) Dial(ctx context.Context, address string, timeout time.Duration) (*Connection, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}
	dev, err := t.device()
	if err != nil {
		return nil, err
	}

	t.logger.WithFields(logrus.Fields{
		"address": address,
		"timeout": timeout,
	}).Info("Connecting to BLE device...")

	connCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := dev.Dial(connCtx, ble.NewAddr(address))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to device with address %q: %w", address, NormalizeError(err))
	}

	t.logger.WithField("address", address).Debug("Discovering services and characteristics...")
	profile, err := client.DiscoverProfile(true)
	if err != nil {
		if cancelErr := client.CancelConnection(); cancelErr != nil {
			t.logger.WithField("cancel_error", cancelErr).Warn("Failed to cancel connection during profile discovery failure")
		}
		return nil, fmt.Errorf("failed to discover profile: %w", err)
	}

	conn := newConnection(client, profile, t.logger)
	t.logger.WithFields(logrus.Fields{
		"address":  address,
		"services": len(profile.Services),
	}).Info("BLE device connected successfully")
	return conn, nil
}

// DialAdvertisement connects to a previously discovered peripheral.
func (t *Transport) DialAdvertisement(ctx context.Context, adv Advertisement, timeout time.Duration) (*Connection, error) {
	return t.Dial(ctx, adv.Address, timeout)
}
