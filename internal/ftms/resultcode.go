package ftms

import "fmt"

// ResultCode is the outcome of a Fitness Machine Control Point request as
// reported in the response indication.
type ResultCode byte

const (
	ResultSuccess          ResultCode = 0x01
	ResultNotSupported     ResultCode = 0x02
	ResultInvalidParameter ResultCode = 0x03
	ResultFailed           ResultCode = 0x04
	ResultNotPermitted     ResultCode = 0x05
)

func (r ResultCode) String() string {
	switch r {
	case ResultSuccess:
		return "SUCCESS"
	case ResultNotSupported:
		return "NOT_SUPPORTED"
	case ResultInvalidParameter:
		return "INVALID_PARAMETER"
	case ResultFailed:
		return "FAILED"
	case ResultNotPermitted:
		return "NOT_PERMITTED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02X)", byte(r))
	}
}
