package zenoh

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// ErrorKind classifies failures by who is at fault and what state the
// resources involved are left in.
type ErrorKind uint8

const (
	// KindConstruct: a native constructor failed. The backing storage was
	// freed and no destructor ran.
	KindConstruct ErrorKind = iota + 1
	// KindOperation: a native call on a live resource failed. Moved inputs
	// were consumed anyway.
	KindOperation
	// KindProtocol: the caller used a resource after moving or releasing it.
	KindProtocol
	// KindCallback: a subscriber handler panicked.
	KindCallback
	// KindState: the session was not in the state the call requires.
	KindState
)

func (k ErrorKind) String() string {
	switch k {
	case KindConstruct:
		return "construct"
	case KindOperation:
		return "operation"
	case KindProtocol:
		return "protocol"
	case KindCallback:
		return "callback"
	case KindState:
		return "state"
	default:
		return "unknown"
	}
}

// Error is the structured error returned by every fallible call in this
// package.
type Error struct {
	Kind   ErrorKind
	Op     string
	Code   Result
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("zenoh: ")
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	b.WriteString(" error")
	if e.Code != ResultOK {
		b.WriteString(" (")
		b.WriteString(bindings.Result(e.Code).String())
		b.WriteByte(')')
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap exposes the cause and, for native failures, the Result code, so
// errors.Is works with both.
func (e *Error) Unwrap() []error {
	var errs []error
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	if e.Code != ResultOK {
		errs = append(errs, e.Code)
	}
	return errs
}

// Is matches another *Error on every non-zero field of the target among
// Kind, Op and Code. The exported kind sentinels therefore match any error
// of their kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != 0 && t.Kind != e.Kind {
		return false
	}
	if t.Code != ResultOK && t.Code != e.Code {
		return false
	}
	return t.Op == "" || t.Op == e.Op
}

var (
	ErrConstruct    = &Error{Kind: KindConstruct}
	ErrOperation    = &Error{Kind: KindOperation}
	ErrProtocol     = &Error{Kind: KindProtocol}
	ErrCallback     = &Error{Kind: KindCallback}
	ErrSessionState = &Error{Kind: KindState}

	ErrMoved         = errors.New("resource was moved")
	ErrReleased      = errors.New("resource was released")
	ErrSampleExpired = errors.New("sample used after its callback returned")
	ErrNilHandler    = errors.New("handler must not be nil")
	ErrNilResource   = errors.New("resource must not be nil")
	ErrHandlerClosed = errors.New("handler channel closed")

	// ErrNotBuilt reports that the native engine is not linked into this
	// binary. Use loopback.New with WithEngine instead.
	ErrNotBuilt = bindings.ErrNotBuilt
	// ErrCGONotEnabled accompanies ErrNotBuilt in binaries built without cgo.
	ErrCGONotEnabled = bindings.ErrCGONotEnabled
)

func constructErr(op string, rc bindings.Result) *Error {
	return &Error{Kind: KindConstruct, Op: op, Code: Result(rc)}
}

func operationErr(op string, rc bindings.Result) *Error {
	return &Error{Kind: KindOperation, Op: op, Code: Result(rc)}
}

func protocolErr(op string, cause error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Cause: cause}
}

func stateErr(op string, have SessionState) *Error {
	return &Error{Kind: KindState, Op: op, Detail: fmt.Sprintf("session is %s", have)}
}

func callbackErr(op string, recovered any) *Error {
	if err, ok := recovered.(error); ok {
		return &Error{Kind: KindCallback, Op: op, Detail: "handler panicked", Cause: err}
	}
	return &Error{Kind: KindCallback, Op: op, Detail: fmt.Sprintf("handler panicked: %v", recovered)}
}

// Result is a native result code. Non-OK values are errors, so callers can
// test for a specific code with errors.Is(err, zenoh.ResultEParse).
type Result int8

const (
	ResultOK                  = Result(bindings.OK)
	ResultChannelDisconnected = Result(bindings.ChannelDisconnected)
	ResultChannelNoData       = Result(bindings.ChannelNoData)
	ResultEInval              = Result(bindings.EInval)
	ResultEParse              = Result(bindings.EParse)
	ResultEIO                 = Result(bindings.EIO)
	ResultENetwork            = Result(bindings.ENetwork)
	ResultENull               = Result(bindings.ENull)
	ResultEUnavailable        = Result(bindings.EUnavailable)
	ResultEDeserialize        = Result(bindings.EDeserialize)
	ResultESessionClosed      = Result(bindings.ESessionClosed)
	ResultEUTF8               = Result(bindings.EUTF8)
	ResultEAgainMutex         = Result(bindings.EAgainMutex)
	ResultEBusyMutex          = Result(bindings.EBusyMutex)
	ResultEInvalMutex         = Result(bindings.EInvalMutex)
	ResultEGeneric            = Result(bindings.EGeneric)
)

func (r Result) Error() string {
	return "zenoh: " + bindings.Result(r).String()
}

func (r Result) String() string {
	return bindings.Result(r).String()
}
