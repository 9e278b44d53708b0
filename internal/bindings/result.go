package bindings

import "strconv"

// Result mirrors z_result_t: zero is success, everything else names a
// failure kind reported by the engine.
type Result int8

const (
	OK                  Result = 0
	ChannelDisconnected Result = 1
	ChannelNoData       Result = 2
	EInval              Result = -1
	EParse              Result = -2
	EIO                 Result = -3
	ENetwork            Result = -4
	ENull               Result = -5
	EUnavailable        Result = -6
	EDeserialize        Result = -7
	ESessionClosed      Result = -8
	EUTF8               Result = -9
	EAgainMutex         Result = -11
	EBusyMutex          Result = -16
	EInvalMutex         Result = -22
	EGeneric            Result = -128
)

// Ok reports whether r is the success code.
func (r Result) Ok() bool { return r == OK }

func (r Result) String() string {
	switch r {
	case OK:
		return "Z_OK"
	case ChannelDisconnected:
		return "Z_CHANNEL_DISCONNECTED"
	case ChannelNoData:
		return "Z_CHANNEL_NODATA"
	case EInval:
		return "Z_EINVAL"
	case EParse:
		return "Z_EPARSE"
	case EIO:
		return "Z_EIO"
	case ENetwork:
		return "Z_ENETWORK"
	case ENull:
		return "Z_ENULL"
	case EUnavailable:
		return "Z_EUNAVAILABLE"
	case EDeserialize:
		return "Z_EDESERIALIZE"
	case ESessionClosed:
		return "Z_ESESSION_CLOSED"
	case EUTF8:
		return "Z_EUTF8"
	case EAgainMutex:
		return "Z_EAGAIN_MUTEX"
	case EBusyMutex:
		return "Z_EBUSY_MUTEX"
	case EInvalMutex:
		return "Z_EINVAL_MUTEX"
	case EGeneric:
		return "Z_EGENERIC"
	default:
		return "Z_RESULT(" + strconv.Itoa(int(r)) + ")"
	}
}
