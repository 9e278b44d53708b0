package bindings

import (
	"errors"
	"time"
	"unsafe"
)

var (
	// ErrNotBuilt reports that the native bindings were not linked into the
	// current binary. Callers can use this to fall back to the loopback
	// engine.
	ErrNotBuilt = errors.New("zenoh/internal/bindings: native bindings not built")

	// ErrCGONotEnabled signals that the package was compiled without cgo and
	// therefore cannot talk to the native library.
	ErrCGONotEnabled = errors.New("zenoh/internal/bindings: cgo not enabled")
)

// Kind identifies the native resource type stored behind a pointer.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindConfig
	KindSession
	KindKeyExpr
	KindBytes
	KindEncoding
	KindPublisher
	KindSubscriber
	KindClosureSample
)

// Kinds lists every allocatable kind in declaration order.
var Kinds = []Kind{
	KindConfig,
	KindSession,
	KindKeyExpr,
	KindBytes,
	KindEncoding,
	KindPublisher,
	KindSubscriber,
	KindClosureSample,
}

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindSession:
		return "session"
	case KindKeyExpr:
		return "keyexpr"
	case KindBytes:
		return "bytes"
	case KindEncoding:
		return "encoding"
	case KindPublisher:
		return "publisher"
	case KindSubscriber:
		return "subscriber"
	case KindClosureSample:
		return "closure_sample"
	default:
		return "invalid"
	}
}

// OwnedPtr addresses a z_owned_*_t block. The holder is responsible for
// dropping the value and freeing the block.
type OwnedPtr unsafe.Pointer

// LoanedPtr addresses a z_loaned_*_t view. It is never dropped.
type LoanedPtr unsafe.Pointer

// MovedPtr addresses a z_moved_*_t. The callee takes over the value and
// leaves a gravestone in the block.
type MovedPtr unsafe.Pointer

// SamplePtr addresses the z_loaned_sample_t handed to a sample callback. It
// is valid only for the duration of that callback.
type SamplePtr unsafe.Pointer

// CallFunc is invoked by the engine for each sample delivered to a closure.
type CallFunc func(ctx uintptr, sample SamplePtr)

// DropFunc is invoked by the engine exactly once when a closure is destroyed.
// No CallFunc invocation for the same ctx starts after DropFunc runs.
type DropFunc func(ctx uintptr)

// Priority mirrors z_priority_t. Zero selects the engine default.
type Priority uint8

const (
	PriorityDefault         Priority = 0
	PriorityRealTime        Priority = 1
	PriorityInteractiveHigh Priority = 2
	PriorityInteractiveLow  Priority = 3
	PriorityDataHigh        Priority = 4
	PriorityData            Priority = 5
	PriorityDataLow         Priority = 6
	PriorityBackground      Priority = 7
)

// CongestionControl mirrors z_congestion_control_t, shifted by one so the
// zero value selects the engine default.
type CongestionControl uint8

const (
	CongestionDefault CongestionControl = iota
	CongestionDrop
	CongestionBlock
)

// Reliability mirrors z_reliability_t, shifted by one so the zero value
// selects the engine default.
type Reliability uint8

const (
	ReliabilityDefault Reliability = iota
	ReliabilityBestEffort
	ReliabilityReliable
)

// OpenOptions mirrors z_open_options_t.
type OpenOptions struct{}

// CloseOptions mirrors z_close_options_t.
type CloseOptions struct {
	Timeout time.Duration
}

// PublisherOptions mirrors z_publisher_options_t.
type PublisherOptions struct {
	Encoding          MovedPtr
	Priority          Priority
	CongestionControl CongestionControl
	Reliability       Reliability
	Express           bool
}

// PutOptions mirrors z_publisher_put_options_t. Encoding and Attachment are
// consumed by the put call whatever its outcome.
type PutOptions struct {
	Encoding   MovedPtr
	Attachment MovedPtr
}

// Locality mirrors z_locality_t, shifted by one so the zero value selects
// the engine default. It restricts which publications a subscriber accepts
// by origin.
type Locality uint8

const (
	LocalityDefault Locality = iota
	LocalityAny
	LocalitySessionLocal
	LocalityRemote
)

// SubscriberOptions mirrors z_subscriber_options_t.
type SubscriberOptions struct {
	Reliability Reliability
	// AllowedOrigin maps to the unstable allowed_origin field; builds of
	// zenoh-c without the unstable API ignore it.
	AllowedOrigin Locality
}

// ZID is the 16-byte session identifier reported by z_info_zid.
type ZID [16]byte

// ABI is the set of native calls used by the binding. Implementations are
// the zenoh-c cgo bridge and pkg/zenoh/loopback.
//
// Methods taking MovedPtr consume the value behind it whatever the returned
// Result. Methods writing to an OwnedPtr leave a gravestone there on failure.
type ABI interface {
	// Alloc returns a block sized for one owned value of kind k, holding a
	// gravestone.
	Alloc(k Kind) (OwnedPtr, error)
	// Free releases a block obtained from Alloc. The value inside must have
	// been dropped or moved out.
	Free(k Kind, p OwnedPtr)
	// Loan returns a borrowed view of the value inside p (z_*_loan).
	Loan(k Kind, p OwnedPtr) LoanedPtr
	// Move marks p as about to be consumed (z_*_move).
	Move(k Kind, p OwnedPtr) MovedPtr
	// Drop destroys the value and leaves a gravestone (z_*_drop). Dropping a
	// gravestone is a no-op.
	Drop(k Kind, m MovedPtr)
	// Clone writes a copy of src into dst (z_*_clone).
	Clone(k Kind, dst OwnedPtr, src LoanedPtr) Result

	ConfigDefault(dst OwnedPtr) Result
	ConfigFromStr(dst OwnedPtr, s string) Result
	ConfigFromFile(dst OwnedPtr, path string) Result

	Open(dst OwnedPtr, cfg MovedPtr, opts *OpenOptions) Result
	Close(s LoanedPtr, opts *CloseOptions) Result
	SessionZID(s LoanedPtr) ZID

	KeyExprFromStr(dst OwnedPtr, s string) Result
	KeyExprString(k LoanedPtr) string

	BytesCopyFromBuf(dst OwnedPtr, b []byte) Result
	// BytesCopyOut appends the contents of b to dst via z_bytes_to_slice.
	BytesCopyOut(b LoanedPtr, dst []byte) []byte
	BytesLen(b LoanedPtr) int

	EncodingFromStr(dst OwnedPtr, s string) Result
	EncodingString(e LoanedPtr) string

	DeclarePublisher(s LoanedPtr, dst OwnedPtr, k LoanedPtr, opts *PublisherOptions) Result
	PublisherPut(p LoanedPtr, payload MovedPtr, opts *PutOptions) Result

	ClosureSample(dst OwnedPtr, call CallFunc, drop DropFunc, ctx uintptr) Result
	DeclareSubscriber(s LoanedPtr, dst OwnedPtr, k LoanedPtr, closure MovedPtr, opts *SubscriberOptions) Result

	SamplePayload(s SamplePtr) LoanedPtr
	SampleKeyExpr(s SamplePtr) LoanedPtr
	SampleEncoding(s SamplePtr) LoanedPtr

	// Version reports the engine version string, or "" if unknown.
	Version() string
}
