package treadmill

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sgrimee/fitctrl/internal/ftms"
)

// Machine is the protocol session surface the controller drives. A prepared
// *ftms.Client satisfies it.
type Machine interface {
	Start(ctx context.Context) (ftms.ResultCode, error)
	Stop(ctx context.Context) (ftms.ResultCode, error)
	Pause(ctx context.Context) (ftms.ResultCode, error)
	SetTargetSpeed(ctx context.Context, kmh float64) (ftms.ResultCode, error)
	Snapshot() ftms.Snapshot
	TrainingStatus() (ftms.TrainingStatus, bool)
	Name() string
	DeviceInfo() map[string]string
	OnUpdate(fn func(ftms.Snapshot))
	OnDisconnect(fn func())
	IsConnected() bool
	Close() error
}

// MachineFactory builds a prepared protocol session on an established
// connection. Tests substitute it to inject fakes.
var MachineFactory = func(ctx context.Context, conn ftms.Conn, responseTimeout time.Duration, logger *logrus.Logger) (Machine, error) {
	client := ftms.NewClient(conn, responseTimeout, logger)
	if err := client.Prepare(ctx); err != nil {
		return nil, err
	}
	return client, nil
}
