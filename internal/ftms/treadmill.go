package ftms

import (
	"encoding/binary"
	"fmt"
)

// Treadmill Data flag bit positions (FTMS v1.0 table 4.9).
const (
	tdFlagMoreData        = 1 << 0 // inverted: 0 means instantaneous speed IS present
	tdFlagAverageSpeed    = 1 << 1
	tdFlagTotalDistance   = 1 << 2
	tdFlagInclination     = 1 << 3
	tdFlagElevationGain   = 1 << 4
	tdFlagInstantPace     = 1 << 5
	tdFlagAveragePace     = 1 << 6
	tdFlagExpendedEnergy  = 1 << 7
	tdFlagHeartRate       = 1 << 8
	tdFlagMetabolicEquiv  = 1 << 9
	tdFlagElapsedTime     = 1 << 10
	tdFlagRemainingTime   = 1 << 11
	tdFlagForceAndPower   = 1 << 12
)

// TreadmillData is one decoded Treadmill Data notification. Fields are nil
// when the notification did not carry them, so frames can be merged into a
// last-known snapshot without clobbering fields the device sent earlier.
type TreadmillData struct {
	SpeedInstant  *float64 // km/h
	SpeedAverage  *float64 // km/h
	DistanceTotal *int     // m
	Inclination   *float64 // percent
	RampAngle     *float64 // degrees
	ElevGainPos   *float64 // m
	ElevGainNeg   *float64 // m
	PaceInstant   *float64 // 0.1 km/min units per FTMS
	PaceAverage   *float64
	EnergyTotal   *int // kcal
	EnergyPerHour *int // kcal
	EnergyPerMin  *int // kcal
	HeartRate     *int // bpm
	MET           *float64
	TimeElapsed   *int // s
	TimeRemaining *int // s
	ForceOnBelt   *int // N
	PowerOutput   *int // W

	// StepCount is the vendor tail some WalkingPad-family treadmills append
	// after the flagged FTMS fields.
	StepCount *int
}

// merge copies every field the frame carries over the receiver.
func (d *TreadmillData) merge(frame *TreadmillData) {
	if frame.SpeedInstant != nil {
		d.SpeedInstant = frame.SpeedInstant
	}
	if frame.SpeedAverage != nil {
		d.SpeedAverage = frame.SpeedAverage
	}
	if frame.DistanceTotal != nil {
		d.DistanceTotal = frame.DistanceTotal
	}
	if frame.Inclination != nil {
		d.Inclination = frame.Inclination
	}
	if frame.RampAngle != nil {
		d.RampAngle = frame.RampAngle
	}
	if frame.ElevGainPos != nil {
		d.ElevGainPos = frame.ElevGainPos
	}
	if frame.ElevGainNeg != nil {
		d.ElevGainNeg = frame.ElevGainNeg
	}
	if frame.PaceInstant != nil {
		d.PaceInstant = frame.PaceInstant
	}
	if frame.PaceAverage != nil {
		d.PaceAverage = frame.PaceAverage
	}
	if frame.EnergyTotal != nil {
		d.EnergyTotal = frame.EnergyTotal
	}
	if frame.EnergyPerHour != nil {
		d.EnergyPerHour = frame.EnergyPerHour
	}
	if frame.EnergyPerMin != nil {
		d.EnergyPerMin = frame.EnergyPerMin
	}
	if frame.HeartRate != nil {
		d.HeartRate = frame.HeartRate
	}
	if frame.MET != nil {
		d.MET = frame.MET
	}
	if frame.TimeElapsed != nil {
		d.TimeElapsed = frame.TimeElapsed
	}
	if frame.TimeRemaining != nil {
		d.TimeRemaining = frame.TimeRemaining
	}
	if frame.ForceOnBelt != nil {
		d.ForceOnBelt = frame.ForceOnBelt
	}
	if frame.PowerOutput != nil {
		d.PowerOutput = frame.PowerOutput
	}
	if frame.StepCount != nil {
		d.StepCount = frame.StepCount
	}
}

// cursor walks a notification payload and names the field that ran short.
type cursor struct {
	buf []byte
	off int
}

func (c *cursor) u8(field string) (byte, error) {
	if c.off+1 > len(c.buf) {
		return 0, fmt.Errorf("treadmill data too short for %s at offset %d", field, c.off)
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

func (c *cursor) u16(field string) (uint16, error) {
	if c.off+2 > len(c.buf) {
		return 0, fmt.Errorf("treadmill data too short for %s at offset %d", field, c.off)
	}
	v := binary.LittleEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

func (c *cursor) s16(field string) (int16, error) {
	v, err := c.u16(field)
	return int16(v), err
}

func (c *cursor) u24(field string) (uint32, error) {
	if c.off+3 > len(c.buf) {
		return 0, fmt.Errorf("treadmill data too short for %s at offset %d", field, c.off)
	}
	v := uint32(c.buf[c.off]) | uint32(c.buf[c.off+1])<<8 | uint32(c.buf[c.off+2])<<16
	c.off += 3
	return v, nil
}

func (c *cursor) remaining() int { return len(c.buf) - c.off }

// ParseTreadmillData decodes a Treadmill Data notification: a 16-bit
// little-endian flags field followed by the flagged fields in FTMS order.
// A 2-byte residue past the flagged fields is decoded as the vendor
// cumulative step count.
func ParseTreadmillData(buf []byte) (*TreadmillData, error) {
	if len(buf) < 2 {
		return nil, fmt.Errorf("treadmill data too short: %d bytes", len(buf))
	}

	flags := binary.LittleEndian.Uint16(buf)
	c := &cursor{buf: buf, off: 2}
	d := &TreadmillData{}

	if flags&tdFlagMoreData == 0 {
		raw, err := c.u16("instantaneous speed")
		if err != nil {
			return nil, err
		}
		v := float64(raw) * 0.01
		d.SpeedInstant = &v
	}

	if flags&tdFlagAverageSpeed != 0 {
		raw, err := c.u16("average speed")
		if err != nil {
			return nil, err
		}
		v := float64(raw) * 0.01
		d.SpeedAverage = &v
	}

	if flags&tdFlagTotalDistance != 0 {
		raw, err := c.u24("total distance")
		if err != nil {
			return nil, err
		}
		v := int(raw)
		d.DistanceTotal = &v
	}

	if flags&tdFlagInclination != 0 {
		rawInc, err := c.s16("inclination")
		if err != nil {
			return nil, err
		}
		rawRamp, err := c.s16("ramp angle")
		if err != nil {
			return nil, err
		}
		inc := float64(rawInc) * 0.1
		ramp := float64(rawRamp) * 0.1
		d.Inclination = &inc
		d.RampAngle = &ramp
	}

	if flags&tdFlagElevationGain != 0 {
		rawPos, err := c.u16("positive elevation gain")
		if err != nil {
			return nil, err
		}
		rawNeg, err := c.u16("negative elevation gain")
		if err != nil {
			return nil, err
		}
		pos := float64(rawPos) * 0.1
		neg := float64(rawNeg) * 0.1
		d.ElevGainPos = &pos
		d.ElevGainNeg = &neg
	}

	if flags&tdFlagInstantPace != 0 {
		raw, err := c.u8("instantaneous pace")
		if err != nil {
			return nil, err
		}
		v := float64(raw) * 0.1
		d.PaceInstant = &v
	}

	if flags&tdFlagAveragePace != 0 {
		raw, err := c.u8("average pace")
		if err != nil {
			return nil, err
		}
		v := float64(raw) * 0.1
		d.PaceAverage = &v
	}

	if flags&tdFlagExpendedEnergy != 0 {
		rawTotal, err := c.u16("total energy")
		if err != nil {
			return nil, err
		}
		rawHour, err := c.u16("energy per hour")
		if err != nil {
			return nil, err
		}
		rawMin, err := c.u8("energy per minute")
		if err != nil {
			return nil, err
		}
		total := int(rawTotal)
		perHour := int(rawHour)
		perMin := int(rawMin)
		d.EnergyTotal = &total
		d.EnergyPerHour = &perHour
		d.EnergyPerMin = &perMin
	}

	if flags&tdFlagHeartRate != 0 {
		raw, err := c.u8("heart rate")
		if err != nil {
			return nil, err
		}
		v := int(raw)
		d.HeartRate = &v
	}

	if flags&tdFlagMetabolicEquiv != 0 {
		raw, err := c.u8("metabolic equivalent")
		if err != nil {
			return nil, err
		}
		v := float64(raw) * 0.1
		d.MET = &v
	}

	if flags&tdFlagElapsedTime != 0 {
		raw, err := c.u16("elapsed time")
		if err != nil {
			return nil, err
		}
		v := int(raw)
		d.TimeElapsed = &v
	}

	if flags&tdFlagRemainingTime != 0 {
		raw, err := c.u16("remaining time")
		if err != nil {
			return nil, err
		}
		v := int(raw)
		d.TimeRemaining = &v
	}

	if flags&tdFlagForceAndPower != 0 {
		rawForce, err := c.s16("force on belt")
		if err != nil {
			return nil, err
		}
		rawPower, err := c.s16("power output")
		if err != nil {
			return nil, err
		}
		force := int(rawForce)
		power := int(rawPower)
		d.ForceOnBelt = &force
		d.PowerOutput = &power
	}

	// Exactly two trailing bytes is the WalkingPad step counter. Any other
	// residue is vendor padding we don't understand; leave it alone.
	if c.remaining() == 2 {
		raw, _ := c.u16("step count")
		v := int(raw)
		d.StepCount = &v
	}

	return d, nil
}
