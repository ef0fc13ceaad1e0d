package treadmill

import "github.com/sgrimee/fitctrl/internal/ftms"

// Display strings used when the machine state does not come from a reported
// FTMS training status.
const (
	StatusDisconnected = "DISCONNECTED"
	StatusUnknown      = "UNKNOWN"
)

// Telemetry is one frame of machine state in display terms. Frames are
// cumulative: every field holds the last-known value at the time the frame
// was produced.
type Telemetry struct {
	Status   string
	Speed    float64 // km/h
	Distance int     // m
	Time     int     // s
	Steps    int
	Calories int // kcal
}

// fromSnapshot converts a protocol snapshot into a telemetry frame.
func fromSnapshot(snap ftms.Snapshot) Telemetry {
	status := StatusUnknown
	if snap.HasStatus {
		status = snap.Status.String()
	}
	return Telemetry{
		Status:   status,
		Speed:    snap.Speed,
		Distance: snap.Distance,
		Time:     snap.Elapsed,
		Steps:    snap.Steps,
		Calories: snap.Calories,
	}
}
