//go:build test

package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/suite"

	"github.com/sgrimee/fitctrl/internal/config"
	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/gatt"
	"github.com/sgrimee/fitctrl/internal/testutils"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

// Test device identity used by the fake transport
const (
	testDeviceAddress = "aa:bb:cc:dd:ee:01"
	testDeviceName    = "KS-AP-RQ3-0123"
)

// CommandTestSuite provides REPL and one-shot testing utilities over fakes.
// All cmd/fitctrl test suites should embed this. The session factories are
// process globals, so fixtures rebind them per test and the suite restores
// the originals afterwards.
type CommandTestSuite struct {
	suite.Suite

	originalMachineFactory   func(context.Context, ftms.Conn, time.Duration, *logrus.Logger) (treadmill.Machine, error)
	originalTransportFactory func(*logrus.Logger) treadmill.Transport
}

func (s *CommandTestSuite) SetupSuite() {
	s.originalMachineFactory = treadmill.MachineFactory
	s.originalTransportFactory = TransportFactory
}

func (s *CommandTestSuite) TearDownSuite() {
	treadmill.MachineFactory = s.originalMachineFactory
	TransportFactory = s.originalTransportFactory
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// syncBuffer is a bytes.Buffer safe for the telemetry consumer goroutine
// and the test to share.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// replFixture is one isolated REPL wired to fakes. Output accumulates in
// out; dispatch returns everything printed so far.
type replFixture struct {
	cfg       *config.Config
	machine   *testutils.FakeMachine
	transport *fakeTransport
	cache     *fakeCache
	ctrl      *treadmill.Controller
	display   *Display
	out       *syncBuffer
	repl      *REPL
}

// newFixture builds a disconnected fixture and rebinds the machine factory
// to its fake. Subtests running under one suite test each need their own
// fixture for isolation.
func (s *CommandTestSuite) newFixture() *replFixture {
	cfg := config.DefaultConfig()
	cfg.ScanTimeout = 50 * time.Millisecond
	cfg.ConnectTimeout = 50 * time.Millisecond

	fx := &replFixture{
		cfg:       cfg,
		machine:   testutils.NewFakeMachine(),
		transport: &fakeTransport{found: true},
		cache:     &fakeCache{},
		out:       &syncBuffer{},
	}
	treadmill.MachineFactory = func(ctx context.Context, conn ftms.Conn, timeout time.Duration, logger *logrus.Logger) (treadmill.Machine, error) {
		return fx.machine, nil
	}

	logger := newQuietLogger()
	fx.ctrl = treadmill.NewController(cfg, fx.transport, fx.cache, logger)
	fx.display = NewDisplay(fx.out)
	fx.repl = NewREPL(cfg, logger, fx.ctrl, fx.display)
	fx.repl.statusDelay = 0
	fx.repl.running = true
	return fx
}

func (s *CommandTestSuite) connectedFixture() *replFixture {
	fx := s.newFixture()
	s.Require().True(fx.ctrl.Connect(context.Background()), "connect MUST succeed")
	return fx
}

// dispatch runs one input line through the registry and returns all output
// printed so far.
func (fx *replFixture) dispatch(line string) string {
	fx.repl.registry.Dispatch(context.Background(), line, fx.display)
	return fx.out.String()
}

func newQuietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// fakeTransport serves a single advertised device and records dial targets.
type fakeTransport struct {
	mu       sync.Mutex
	found    bool
	failDial bool
	dials    []string
}

func (t *fakeTransport) ScanFirst(ctx context.Context, timeout time.Duration, match func(gatt.Advertisement) bool) (gatt.Advertisement, bool, error) {
	adv := gatt.Advertisement{
		Address:  testDeviceAddress,
		Name:     testDeviceName,
		Services: []string{"1826"},
		RSSI:     -58,
	}
	if t.found && match(adv) {
		return adv, true, nil
	}
	return gatt.Advertisement{}, false, nil
}

func (t *fakeTransport) Dial(ctx context.Context, address string, timeout time.Duration) (ftms.Conn, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.dials = append(t.dials, address)
	if t.failDial {
		return nil, errors.New("dial failed")
	}
	return &stubConn{}, nil
}

func (t *fakeTransport) DialAdvertisement(ctx context.Context, adv gatt.Advertisement, timeout time.Duration) (ftms.Conn, error) {
	return t.Dial(ctx, adv.Address, timeout)
}

func (t *fakeTransport) dialed() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.dials...)
}

// stubConn is never exercised beyond Close because the machine factory is
// overridden before any session handshake.
type stubConn struct{ ftms.Conn }

func (c *stubConn) Close() error { return nil }

// fakeCache is an in-memory address cache.
type fakeCache struct {
	mu      sync.Mutex
	address string
	cleared int
}

func (c *fakeCache) Load() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.address, c.address != ""
}

func (c *fakeCache) Save(address string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = address
}

func (c *fakeCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.address = ""
	c.cleared++
}
