//go:build cgo && zenohc

package bindings

/*
#cgo CFLAGS: -I${SRCDIR}/../../zenoh-c/include
#cgo LDFLAGS: -L${SRCDIR}/../../zenoh-c/lib -lzenohc
#cgo linux LDFLAGS: -ldl -lm -lpthread
#cgo darwin LDFLAGS: -framework Security -framework CoreFoundation
#include <stdlib.h>
#include <string.h>
#include <zenoh.h>

extern void zgoSampleCall(z_loaned_sample_t* sample, void* ctx);
extern void zgoSampleDrop(void* ctx);

static void zgo_closure_sample(z_owned_closure_sample_t* out, uintptr_t ctx) {
	z_closure_sample(out, zgoSampleCall, zgoSampleDrop, (void*)ctx);
}

static z_result_t zgo_open(z_owned_session_t* out, z_owned_config_t* cfg) {
	z_open_options_t opts;
	z_open_options_default(&opts);
	return z_open(out, (z_moved_config_t*)cfg, &opts);
}

static z_result_t zgo_close(z_loaned_session_t* s) {
	z_close_options_t opts;
	z_close_options_default(&opts);
	return z_close(s, &opts);
}

static z_result_t zgo_declare_publisher(const z_loaned_session_t* s, z_owned_publisher_t* out,
		const z_loaned_keyexpr_t* ke, z_owned_encoding_t* enc, int priority, int congestion, bool express) {
	z_publisher_options_t opts;
	z_publisher_options_default(&opts);
	if (enc != NULL) {
		opts.encoding = (z_moved_encoding_t*)enc;
	}
	if (priority > 0) {
		opts.priority = (z_priority_t)priority;
	}
	if (congestion == 1) {
		opts.congestion_control = Z_CONGESTION_CONTROL_DROP;
	} else if (congestion == 2) {
		opts.congestion_control = Z_CONGESTION_CONTROL_BLOCK;
	}
	opts.is_express = express;
	return z_declare_publisher(s, out, ke, &opts);
}

static z_result_t zgo_publisher_put(const z_loaned_publisher_t* p, z_owned_bytes_t* payload,
		z_owned_encoding_t* enc, z_owned_bytes_t* attachment) {
	z_publisher_put_options_t opts;
	z_publisher_put_options_default(&opts);
	if (enc != NULL) {
		opts.encoding = (z_moved_encoding_t*)enc;
	}
	if (attachment != NULL) {
		opts.attachment = (z_moved_bytes_t*)attachment;
	}
	return z_publisher_put(p, (z_moved_bytes_t*)payload, &opts);
}

static z_result_t zgo_declare_subscriber(const z_loaned_session_t* s, z_owned_subscriber_t* out,
		const z_loaned_keyexpr_t* ke, z_owned_closure_sample_t* closure, int origin) {
	z_subscriber_options_t opts;
	z_subscriber_options_default(&opts);
#if defined(Z_FEATURE_UNSTABLE_API)
	if (origin > 0) {
		opts.allowed_origin = (z_locality_t)(origin - 1);
	}
#else
	(void)origin;
#endif
	return z_declare_subscriber(s, out, ke, (z_moved_closure_sample_t*)closure, &opts);
}

static void zgo_keyexpr_view(const z_loaned_keyexpr_t* ke, const char** data, size_t* len) {
	z_view_string_t view;
	z_keyexpr_as_view_string(ke, &view);
	const z_loaned_string_t* s = z_view_string_loan(&view);
	*data = z_string_data(s);
	*len = z_string_len(s);
}
*/
import "C"

import (
	"errors"
	"sync/atomic"
	"unsafe"
)

var errUnknownKind = errors.New("zenoh/internal/bindings: unknown resource kind")

type trampolines struct {
	call CallFunc
	drop DropFunc
}

// cgo cannot mint C function pointers at runtime, so every closure shares
// the exported pair in zenohc_callbacks.go and dispatches through here.
var installed atomic.Pointer[trampolines]

type nativeABI struct{}

// Native returns the zenoh-c implementation.
func Native() (ABI, error) {
	return nativeABI{}, nil
}

func sizeOf(k Kind) C.size_t {
	switch k {
	case KindConfig:
		return C.sizeof_z_owned_config_t
	case KindSession:
		return C.sizeof_z_owned_session_t
	case KindKeyExpr:
		return C.sizeof_z_owned_keyexpr_t
	case KindBytes:
		return C.sizeof_z_owned_bytes_t
	case KindEncoding:
		return C.sizeof_z_owned_encoding_t
	case KindPublisher:
		return C.sizeof_z_owned_publisher_t
	case KindSubscriber:
		return C.sizeof_z_owned_subscriber_t
	case KindClosureSample:
		return C.sizeof_z_owned_closure_sample_t
	default:
		return 0
	}
}

func (nativeABI) Alloc(k Kind) (OwnedPtr, error) {
	size := sizeOf(k)
	if size == 0 {
		return nil, errUnknownKind
	}
	p := C.malloc(size)
	if p == nil {
		return nil, errors.New("zenoh/internal/bindings: malloc failed")
	}
	C.memset(p, 0, size)
	switch k {
	case KindConfig:
		C.z_internal_config_null((*C.z_owned_config_t)(p))
	case KindSession:
		C.z_internal_session_null((*C.z_owned_session_t)(p))
	case KindKeyExpr:
		C.z_internal_keyexpr_null((*C.z_owned_keyexpr_t)(p))
	case KindBytes:
		C.z_internal_bytes_null((*C.z_owned_bytes_t)(p))
	case KindEncoding:
		C.z_internal_encoding_null((*C.z_owned_encoding_t)(p))
	case KindPublisher:
		C.z_internal_publisher_null((*C.z_owned_publisher_t)(p))
	case KindSubscriber:
		C.z_internal_subscriber_null((*C.z_owned_subscriber_t)(p))
	case KindClosureSample:
		C.z_internal_closure_sample_null((*C.z_owned_closure_sample_t)(p))
	}
	return OwnedPtr(p), nil
}

func (nativeABI) Free(_ Kind, p OwnedPtr) {
	if p != nil {
		C.free(unsafe.Pointer(p))
	}
}

func (nativeABI) Loan(k Kind, p OwnedPtr) LoanedPtr {
	switch k {
	case KindConfig:
		return LoanedPtr(unsafe.Pointer(C.z_config_loan((*C.z_owned_config_t)(p))))
	case KindSession:
		return LoanedPtr(unsafe.Pointer(C.z_session_loan((*C.z_owned_session_t)(p))))
	case KindKeyExpr:
		return LoanedPtr(unsafe.Pointer(C.z_keyexpr_loan((*C.z_owned_keyexpr_t)(p))))
	case KindBytes:
		return LoanedPtr(unsafe.Pointer(C.z_bytes_loan((*C.z_owned_bytes_t)(p))))
	case KindEncoding:
		return LoanedPtr(unsafe.Pointer(C.z_encoding_loan((*C.z_owned_encoding_t)(p))))
	case KindPublisher:
		return LoanedPtr(unsafe.Pointer(C.z_publisher_loan((*C.z_owned_publisher_t)(p))))
	case KindSubscriber:
		return LoanedPtr(unsafe.Pointer(C.z_subscriber_loan((*C.z_owned_subscriber_t)(p))))
	case KindClosureSample:
		return LoanedPtr(unsafe.Pointer(C.z_closure_sample_loan((*C.z_owned_closure_sample_t)(p))))
	default:
		return nil
	}
}

// Move is a pointer cast in zenoh-c (z_*_move).
func (nativeABI) Move(_ Kind, p OwnedPtr) MovedPtr {
	return MovedPtr(p)
}

func (nativeABI) Drop(k Kind, m MovedPtr) {
	if m == nil {
		return
	}
	switch k {
	case KindConfig:
		C.z_config_drop((*C.z_moved_config_t)(m))
	case KindSession:
		C.z_session_drop((*C.z_moved_session_t)(m))
	case KindKeyExpr:
		C.z_keyexpr_drop((*C.z_moved_keyexpr_t)(m))
	case KindBytes:
		C.z_bytes_drop((*C.z_moved_bytes_t)(m))
	case KindEncoding:
		C.z_encoding_drop((*C.z_moved_encoding_t)(m))
	case KindPublisher:
		C.z_publisher_drop((*C.z_moved_publisher_t)(m))
	case KindSubscriber:
		C.z_subscriber_drop((*C.z_moved_subscriber_t)(m))
	case KindClosureSample:
		C.z_closure_sample_drop((*C.z_moved_closure_sample_t)(m))
	}
}

func (nativeABI) Clone(k Kind, dst OwnedPtr, src LoanedPtr) Result {
	switch k {
	case KindConfig:
		C.z_config_clone((*C.z_owned_config_t)(dst), (*C.z_loaned_config_t)(src))
	case KindKeyExpr:
		C.z_keyexpr_clone((*C.z_owned_keyexpr_t)(dst), (*C.z_loaned_keyexpr_t)(src))
	case KindBytes:
		C.z_bytes_clone((*C.z_owned_bytes_t)(dst), (*C.z_loaned_bytes_t)(src))
	case KindEncoding:
		C.z_encoding_clone((*C.z_owned_encoding_t)(dst), (*C.z_loaned_encoding_t)(src))
	default:
		return EInval
	}
	return OK
}

func (nativeABI) ConfigDefault(dst OwnedPtr) Result {
	return Result(C.z_config_default((*C.z_owned_config_t)(dst)))
}

func (nativeABI) ConfigFromStr(dst OwnedPtr, s string) Result {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return Result(C.zc_config_from_str((*C.z_owned_config_t)(dst), cs))
}

func (nativeABI) ConfigFromFile(dst OwnedPtr, path string) Result {
	cs := C.CString(path)
	defer C.free(unsafe.Pointer(cs))
	return Result(C.zc_config_from_file((*C.z_owned_config_t)(dst), cs))
}

func (nativeABI) Open(dst OwnedPtr, cfg MovedPtr, _ *OpenOptions) Result {
	return Result(C.zgo_open((*C.z_owned_session_t)(dst), (*C.z_owned_config_t)(cfg)))
}

// Close ignores opts.Timeout: the close timeout is behind zenoh-c's unstable
// API.
func (nativeABI) Close(s LoanedPtr, _ *CloseOptions) Result {
	return Result(C.zgo_close((*C.z_loaned_session_t)(s)))
}

func (nativeABI) SessionZID(s LoanedPtr) ZID {
	id := C.z_info_zid((*C.z_loaned_session_t)(s))
	var out ZID
	for i := range out {
		out[i] = byte(id.id[i])
	}
	return out
}

func (nativeABI) KeyExprFromStr(dst OwnedPtr, s string) Result {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return Result(C.z_keyexpr_from_str((*C.z_owned_keyexpr_t)(dst), cs))
}

func (nativeABI) KeyExprString(k LoanedPtr) string {
	var data *C.char
	var n C.size_t
	C.zgo_keyexpr_view((*C.z_loaned_keyexpr_t)(k), &data, &n)
	return C.GoStringN(data, C.int(n))
}

func (nativeABI) BytesCopyFromBuf(dst OwnedPtr, b []byte) Result {
	if len(b) == 0 {
		C.z_bytes_empty((*C.z_owned_bytes_t)(dst))
		return OK
	}
	return Result(C.z_bytes_copy_from_buf((*C.z_owned_bytes_t)(dst), (*C.uint8_t)(unsafe.Pointer(&b[0])), C.size_t(len(b))))
}

func (nativeABI) BytesCopyOut(b LoanedPtr, dst []byte) []byte {
	var slice C.z_owned_slice_t
	if rc := C.z_bytes_to_slice((*C.z_loaned_bytes_t)(b), &slice); rc != 0 {
		return dst
	}
	ls := C.z_slice_loan(&slice)
	n := int(C.z_slice_len(ls))
	if n > 0 {
		dst = append(dst, unsafe.Slice((*byte)(unsafe.Pointer(C.z_slice_data(ls))), n)...)
	}
	C.z_slice_drop((*C.z_moved_slice_t)(unsafe.Pointer(&slice)))
	return dst
}

func (nativeABI) BytesLen(b LoanedPtr) int {
	return int(C.z_bytes_len((*C.z_loaned_bytes_t)(b)))
}

func (nativeABI) EncodingFromStr(dst OwnedPtr, s string) Result {
	cs := C.CString(s)
	defer C.free(unsafe.Pointer(cs))
	return Result(C.z_encoding_from_str((*C.z_owned_encoding_t)(dst), cs))
}

func (nativeABI) EncodingString(e LoanedPtr) string {
	var s C.z_owned_string_t
	C.z_encoding_to_string((*C.z_loaned_encoding_t)(e), &s)
	ls := C.z_string_loan(&s)
	out := C.GoStringN(C.z_string_data(ls), C.int(C.z_string_len(ls)))
	C.z_string_drop((*C.z_moved_string_t)(unsafe.Pointer(&s)))
	return out
}

// DeclarePublisher ignores opts.Reliability: publisher reliability is behind
// zenoh-c's unstable API.
func (nativeABI) DeclarePublisher(s LoanedPtr, dst OwnedPtr, k LoanedPtr, opts *PublisherOptions) Result {
	var (
		enc        *C.z_owned_encoding_t
		priority   C.int
		congestion C.int
		express    C.bool
	)
	if opts != nil {
		enc = (*C.z_owned_encoding_t)(opts.Encoding)
		priority = C.int(opts.Priority)
		congestion = C.int(opts.CongestionControl)
		express = C.bool(opts.Express)
	}
	return Result(C.zgo_declare_publisher(
		(*C.z_loaned_session_t)(s),
		(*C.z_owned_publisher_t)(dst),
		(*C.z_loaned_keyexpr_t)(k),
		enc, priority, congestion, express))
}

func (nativeABI) PublisherPut(p LoanedPtr, payload MovedPtr, opts *PutOptions) Result {
	var enc *C.z_owned_encoding_t
	var attachment *C.z_owned_bytes_t
	if opts != nil {
		enc = (*C.z_owned_encoding_t)(opts.Encoding)
		attachment = (*C.z_owned_bytes_t)(opts.Attachment)
	}
	return Result(C.zgo_publisher_put(
		(*C.z_loaned_publisher_t)(p),
		(*C.z_owned_bytes_t)(payload),
		enc, attachment))
}

func (nativeABI) ClosureSample(dst OwnedPtr, call CallFunc, drop DropFunc, ctx uintptr) Result {
	if call == nil || drop == nil {
		return EInval
	}
	if installed.Load() == nil {
		installed.CompareAndSwap(nil, &trampolines{call: call, drop: drop})
	}
	C.zgo_closure_sample((*C.z_owned_closure_sample_t)(dst), C.uintptr_t(ctx))
	return OK
}

// DeclareSubscriber ignores opts.Reliability: subscriber reliability is
// negotiated by the publisher in zenoh 1.x.
func (nativeABI) DeclareSubscriber(s LoanedPtr, dst OwnedPtr, k LoanedPtr, closure MovedPtr, opts *SubscriberOptions) Result {
	var origin C.int
	if opts != nil {
		origin = C.int(opts.AllowedOrigin)
	}
	return Result(C.zgo_declare_subscriber(
		(*C.z_loaned_session_t)(s),
		(*C.z_owned_subscriber_t)(dst),
		(*C.z_loaned_keyexpr_t)(k),
		(*C.z_owned_closure_sample_t)(closure),
		origin))
}

func (nativeABI) SamplePayload(s SamplePtr) LoanedPtr {
	return LoanedPtr(unsafe.Pointer(C.z_sample_payload((*C.z_loaned_sample_t)(s))))
}

func (nativeABI) SampleKeyExpr(s SamplePtr) LoanedPtr {
	return LoanedPtr(unsafe.Pointer(C.z_sample_keyexpr((*C.z_loaned_sample_t)(s))))
}

func (nativeABI) SampleEncoding(s SamplePtr) LoanedPtr {
	return LoanedPtr(unsafe.Pointer(C.z_sample_encoding((*C.z_loaned_sample_t)(s))))
}

// Version is empty: zenoh-c does not export its version through the stable
// API.
func (nativeABI) Version() string { return "" }
