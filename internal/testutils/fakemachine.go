//go:build test

package testutils

import (
	"context"
	"fmt"
	"sync"

	"github.com/sgrimee/fitctrl/internal/ftms"
	"github.com/sgrimee/fitctrl/internal/treadmill"
)

// FakeMachine is a scripted stand-in for the controller's machine interface.
// Commands record themselves and return the scripted results; telemetry is
// injected through PushSnapshot, link loss through DropLink.
type FakeMachine struct {
	StartResult ftms.ResultCode
	StopResult  ftms.ResultCode
	PauseResult ftms.ResultCode
	SpeedResult ftms.ResultCode
	Err         error

	DeviceName string
	Info       map[string]string

	mu           sync.Mutex
	snapshot     ftms.Snapshot
	connected    bool
	calls        []string
	onUpdate     func(ftms.Snapshot)
	onDisconnect func()
}

var _ treadmill.Machine = (*FakeMachine)(nil)

// NewFakeMachine returns a connected fake whose commands all succeed.
func NewFakeMachine() *FakeMachine {
	return &FakeMachine{
		StartResult: ftms.ResultSuccess,
		StopResult:  ftms.ResultSuccess,
		PauseResult: ftms.ResultSuccess,
		SpeedResult: ftms.ResultSuccess,
		DeviceName:  "KS-AP-RQ3-0123",
		Info: map[string]string{
			"device_name":       "KS-AP-RQ3-0123",
			"manufacturer":      "KingSmith",
			"firmware_revision": "1.2.8",
		},
		connected: true,
	}
}

func (m *FakeMachine) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls returns the recorded command invocations in order.
func (m *FakeMachine) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	calls := make([]string, len(m.calls))
	copy(calls, m.calls)
	return calls
}

func (m *FakeMachine) Start(ctx context.Context) (ftms.ResultCode, error) {
	m.record("start")
	return m.StartResult, m.Err
}

func (m *FakeMachine) Stop(ctx context.Context) (ftms.ResultCode, error) {
	m.record("stop")
	return m.StopResult, m.Err
}

func (m *FakeMachine) Pause(ctx context.Context) (ftms.ResultCode, error) {
	m.record("pause")
	return m.PauseResult, m.Err
}

func (m *FakeMachine) SetTargetSpeed(ctx context.Context, kmh float64) (ftms.ResultCode, error) {
	m.record(fmt.Sprintf("set_speed %.1f", kmh))
	return m.SpeedResult, m.Err
}

func (m *FakeMachine) Snapshot() ftms.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot
}

func (m *FakeMachine) TrainingStatus() (ftms.TrainingStatus, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshot.Status, m.snapshot.HasStatus
}

func (m *FakeMachine) Name() string {
	return m.DeviceName
}

func (m *FakeMachine) DeviceInfo() map[string]string {
	info := make(map[string]string, len(m.Info))
	for k, v := range m.Info {
		info[k] = v
	}
	return info
}

func (m *FakeMachine) OnUpdate(fn func(ftms.Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onUpdate = fn
}

func (m *FakeMachine) OnDisconnect(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onDisconnect = fn
}

func (m *FakeMachine) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *FakeMachine) Close() error {
	m.record("close")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// PushSnapshot updates the scripted state and fires the update callback the
// way a device notification would.
func (m *FakeMachine) PushSnapshot(snap ftms.Snapshot) {
	m.mu.Lock()
	m.snapshot = snap
	fn := m.onUpdate
	m.mu.Unlock()
	if fn != nil {
		fn(snap)
	}
}

// DropLink simulates the device side closing the connection.
func (m *FakeMachine) DropLink() {
	m.mu.Lock()
	m.connected = false
	fn := m.onDisconnect
	m.mu.Unlock()
	if fn != nil {
		fn()
	}
}
