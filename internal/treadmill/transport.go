package treadmill

import (
	"context"
	"time"

	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/gatt"
)

// Transport is the slice of the BLE layer the controller needs.
type Transport interface {
	ScanFirst(ctx context.Context, timeout time.Duration, match func(gatt.Advertisement) bool) (gatt.Advertisement, bool, error)
	Dial(ctx context.Context, address string, timeout time.Duration) (ftms.Conn, error)
	DialAdvertisement(ctx context.Context, adv gatt.Advertisement, timeout time.Duration) (ftms.Conn, error)
}

// bleTransport adapts *gatt.Transport to the Transport interface.
type bleTransport struct {
	inner *gatt.Transport
}

// NewBLETransport wraps a gatt transport for use by the controller.
func NewBLETransport(inner *gatt.Transport) Transport {
	return &bleTransport{inner: inner}
}

func (t *bleTransport) ScanFirst(ctx context.Context, timeout time.Duration, match func(gatt.Advertisement) bool) (gatt.Advertisement, bool, error) {
	return t.inner.ScanFirst(ctx, timeout, match)
}

func (t *bleTransport) Dial(ctx context.Context, address string, timeout time.Duration) (ftms.Conn, error) {
	conn, err := t.inner.Dial(ctx, address, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (t *bleTransport) DialAdvertisement(ctx context.Context, adv gatt.Advertisement, timeout time.Duration) (ftms.Conn, error) {
	conn, err := t.inner.DialAdvertisement(ctx, adv, timeout)
	if err != nil {
		return nil, err
	}
	return conn, nil
}
