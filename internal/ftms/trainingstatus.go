package ftms

import "fmt"

// TrainingStatus is the machine state reported by the Training Status
// characteristic (FTMS v1.0 table 4.13).
type TrainingStatus byte

const (
	StatusOther                 TrainingStatus = 0x00
	StatusIdle                  TrainingStatus = 0x01
	StatusWarmingUp             TrainingStatus = 0x02
	StatusLowIntensityInterval  TrainingStatus = 0x03
	StatusHighIntensityInterval TrainingStatus = 0x04
	StatusRecoveryInterval      TrainingStatus = 0x05
	StatusIsometric             TrainingStatus = 0x06
	StatusHeartRateControl      TrainingStatus = 0x07
	StatusFitnessTest           TrainingStatus = 0x08
	StatusSpeedTooLow           TrainingStatus = 0x09
	StatusSpeedTooHigh          TrainingStatus = 0x0A
	StatusCoolDown              TrainingStatus = 0x0B
	StatusWattControl           TrainingStatus = 0x0C
	StatusManualMode            TrainingStatus = 0x0D // quick start
	StatusPreWorkout            TrainingStatus = 0x0E
	StatusPostWorkout           TrainingStatus = 0x0F
)

var trainingStatusNames = map[TrainingStatus]string{
	StatusOther:                 "OTHER",
	StatusIdle:                  "IDLE",
	StatusWarmingUp:             "WARMING_UP",
	StatusLowIntensityInterval:  "LOW_INTENSITY_INTERVAL",
	StatusHighIntensityInterval: "HIGH_INTENSITY_INTERVAL",
	StatusRecoveryInterval:      "RECOVERY_INTERVAL",
	StatusIsometric:             "ISOMETRIC",
	StatusHeartRateControl:      "HEART_RATE_CONTROL",
	StatusFitnessTest:           "FITNESS_TEST",
	StatusSpeedTooLow:           "SPEED_OUTSIDE_CONTROL_REGION_LOW",
	StatusSpeedTooHigh:          "SPEED_OUTSIDE_CONTROL_REGION_HIGH",
	StatusCoolDown:              "COOL_DOWN",
	StatusWattControl:           "WATT_CONTROL",
	StatusManualMode:            "MANUAL_MODE",
	StatusPreWorkout:            "PRE_WORKOUT",
	StatusPostWorkout:           "POST_WORKOUT",
}

func (s TrainingStatus) String() string {
	if name, ok := trainingStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(0x%02X)", byte(s))
}

// ParseTrainingStatus decodes a Training Status notification. The payload is
// a flags byte followed by the status byte; an optional status string after
// that is ignored.
func ParseTrainingStatus(buf []byte) (TrainingStatus, error) {
	if len(buf) < 2 {
		return 0, fmt.Errorf("training status notification too short: %d bytes", len(buf))
	}
	return TrainingStatus(buf[1]), nil
}
