package ftms

import (
	"fmt"
	"math"
)

// OpCode is a Fitness Machine Control Point operation.
type OpCode byte

const (
	OpRequestControl OpCode = 0x00
	OpReset          OpCode = 0x01
	OpSetTargetSpeed OpCode = 0x02
	OpStartOrResume  OpCode = 0x07
	OpStopOrPause    OpCode = 0x08
	OpResponseCode   OpCode = 0x80
)

// StopOrPause parameter values.
const (
	stopParamStop  byte = 0x01
	stopParamPause byte = 0x02
)

func (o OpCode) String() string {
	switch o {
	case OpRequestControl:
		return "REQUEST_CONTROL"
	case OpReset:
		return "RESET"
	case OpSetTargetSpeed:
		return "SET_TARGET_SPEED"
	case OpStartOrResume:
		return "START_RESUME"
	case OpStopOrPause:
		return "STOP_PAUSE"
	case OpResponseCode:
		return "RESPONSE"
	default:
		return fmt.Sprintf("OPCODE(0x%02X)", byte(o))
	}
}

// speedParam encodes a km/h speed as the uint16 little-endian 0.01 km/h
// parameter of Set Target Speed.
func speedParam(kmh float64) []byte {
	raw := uint16(math.Round(kmh * 100))
	return []byte{byte(raw), byte(raw >> 8)}
}

// controlResponse is a decoded [ResponseCode, requestOp, result] indication.
type controlResponse struct {
	RequestOp OpCode
	Result    ResultCode
}

func parseControlResponse(buf []byte) (controlResponse, error) {
	if len(buf) < 3 {
		return controlResponse{}, fmt.Errorf("control point response too short: %d bytes", len(buf))
	}
	if OpCode(buf[0]) != OpResponseCode {
		return controlResponse{}, fmt.Errorf("unexpected control point op code 0x%02X", buf[0])
	}
	return controlResponse{RequestOp: OpCode(buf[1]), Result: ResultCode(buf[2])}, nil
}
