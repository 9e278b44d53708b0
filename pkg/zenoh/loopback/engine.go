package loopback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Op names an engine operation for fault injection.
type Op string

const (
	OpAlloc             Op = "alloc"
	OpConfig            Op = "config"
	OpOpen              Op = "open"
	OpClose             Op = "close"
	OpKeyExpr           Op = "keyexpr"
	OpBytes             Op = "bytes"
	OpEncoding          Op = "encoding"
	OpDeclarePublisher  Op = "declare_publisher"
	OpPut               Op = "put"
	OpClosure           Op = "closure"
	OpDeclareSubscriber Op = "declare_subscriber"
)

const defaultQueueSize = 1024

var errInjectedAlloc = errors.New("loopback: injected allocation failure")

// Option configures an Engine.
type Option func(*Engine)

// WithQueueSize sets how many samples each subscriber buffers before
// congestion control applies. Values below 1 are ignored.
func WithQueueSize(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.queueSize = n
		}
	}
}

// cell is one block handed out by Alloc. A nil obj is a gravestone.
type cell struct {
	kind  bindings.Kind
	obj   any
	freed bool
}

// Engine is an in-process implementation of the native call surface.
type Engine struct {
	queueSize int

	mu          sync.Mutex
	blocks      map[*cell]struct{}
	sessions    map[*sessionObj]struct{}
	constructed map[bindings.Kind]int
	drops       map[bindings.Kind]int
	faults      map[Op]bindings.Result

	discarded atomic.Uint64
	workers   sync.WaitGroup
}

var _ bindings.ABI = (*Engine)(nil)

// New returns an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		queueSize:   defaultQueueSize,
		blocks:      make(map[*cell]struct{}),
		sessions:    make(map[*sessionObj]struct{}),
		constructed: make(map[bindings.Kind]int),
		drops:       make(map[bindings.Kind]int),
		faults:      make(map[Op]bindings.Result),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Shutdown closes every open session and waits for all delivery goroutines to
// finish. It must not be called from a subscriber handler.
func (e *Engine) Shutdown() error {
	e.mu.Lock()
	sessions := make([]*sessionObj, 0, len(e.sessions))
	for s := range e.sessions {
		sessions = append(sessions, s)
	}
	e.mu.Unlock()

	for _, s := range sessions {
		e.closeSession(s)
	}
	e.workers.Wait()
	return nil
}

// Fail makes the next call of op return code. Moved inputs of that call are
// consumed as usual.
func (e *Engine) Fail(op Op, code bindings.Result) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.faults[op] = code
}

func (e *Engine) fault(op Op) (bindings.Result, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rc, ok := e.faults[op]
	if ok {
		delete(e.faults, op)
		Logger().Debug("loopback: injected failure", zap.String("op", string(op)), zap.Stringer("code", rc))
	}
	return rc, ok
}

// Constructed returns how many values of kind k were successfully built.
func (e *Engine) Constructed(k bindings.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.constructed[k]
}

// Drops returns how many live values of kind k were destroyed by Drop.
// Dropping a gravestone is not counted.
func (e *Engine) Drops(k bindings.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.drops[k]
}

// LiveBlocks returns the number of blocks allocated and not yet freed.
func (e *Engine) LiveBlocks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.blocks)
}

// LiveObjects returns the number of blocks of kind k holding a value.
func (e *Engine) LiveObjects(k bindings.Kind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for c := range e.blocks {
		if c.kind == k && c.obj != nil {
			n++
		}
	}
	return n
}

// Discarded returns how many samples congestion control dropped.
func (e *Engine) Discarded() uint64 {
	return e.discarded.Load()
}

// Version identifies the engine.
func (e *Engine) Version() string {
	return "loopback"
}

// cellLocked resolves a block pointer. Touching a freed block is a protocol
// violation by the caller and panics.
func (e *Engine) cellLocked(p unsafe.Pointer) *cell {
	c := (*cell)(p)
	if c == nil {
		panic("loopback: nil block")
	}
	if c.freed {
		panic(fmt.Sprintf("loopback: use of freed %s block", c.kind))
	}
	return c
}

func (e *Engine) Alloc(k bindings.Kind) (bindings.OwnedPtr, error) {
	if _, ok := e.fault(OpAlloc); ok {
		return nil, errInjectedAlloc
	}
	c := &cell{kind: k}
	e.mu.Lock()
	e.blocks[c] = struct{}{}
	e.mu.Unlock()
	return bindings.OwnedPtr(unsafe.Pointer(c)), nil
}

func (e *Engine) Free(k bindings.Kind, p bindings.OwnedPtr) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := (*cell)(p)
	if c.freed {
		panic(fmt.Sprintf("loopback: double free of %s block", k))
	}
	if c.obj != nil {
		Logger().Warn("loopback: freed block still holds a value", zap.Stringer("kind", k))
	}
	c.freed = true
	delete(e.blocks, c)
}

func (e *Engine) Loan(_ bindings.Kind, p bindings.OwnedPtr) bindings.LoanedPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bindings.LoanedPtr(unsafe.Pointer(e.cellLocked(unsafe.Pointer(p))))
}

func (e *Engine) Move(_ bindings.Kind, p bindings.OwnedPtr) bindings.MovedPtr {
	e.mu.Lock()
	defer e.mu.Unlock()
	return bindings.MovedPtr(unsafe.Pointer(e.cellLocked(unsafe.Pointer(p))))
}

func (e *Engine) Drop(k bindings.Kind, m bindings.MovedPtr) {
	if m == nil {
		return
	}
	e.mu.Lock()
	c := e.cellLocked(unsafe.Pointer(m))
	obj := c.obj
	c.obj = nil
	if obj != nil {
		e.drops[k]++
	}
	e.mu.Unlock()

	if obj != nil {
		e.destroy(obj)
	}
}

func (e *Engine) destroy(obj any) {
	switch o := obj.(type) {
	case *sessionObj:
		e.closeSession(o)
	case *publisherObj:
		e.undeclarePublisher(o)
	case *subscriberObj:
		e.undeclareSubscriber(o)
	case *closureObj:
		o.fire()
	}
}

// take consumes the value behind a moved pointer, leaving a gravestone. A nil
// pointer yields nil.
func (e *Engine) take(m bindings.MovedPtr) any {
	if m == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.cellLocked(unsafe.Pointer(m))
	obj := c.obj
	c.obj = nil
	return obj
}

// store writes a freshly constructed value into dst.
func (e *Engine) store(dst bindings.OwnedPtr, obj any) bindings.Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	c := e.cellLocked(unsafe.Pointer(dst))
	if c.obj != nil {
		panic(fmt.Sprintf("loopback: constructing into a live %s block", c.kind))
	}
	c.obj = obj
	e.constructed[c.kind]++
	return bindings.OK
}

func (e *Engine) read(p bindings.LoanedPtr) any {
	if p == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cellLocked(unsafe.Pointer(p)).obj
}

func (e *Engine) Clone(k bindings.Kind, dst bindings.OwnedPtr, src bindings.LoanedPtr) bindings.Result {
	var out any
	switch o := e.read(src).(type) {
	case nil:
		return bindings.ENull
	case *configObj:
		out = o.clone()
	case *keyExprObj:
		out = &keyExprObj{expr: o.expr}
	case *bytesObj:
		out = &bytesObj{data: append([]byte(nil), o.data...)}
	case *encodingObj:
		out = &encodingObj{name: o.name}
	default:
		Logger().Debug("loopback: clone not supported", zap.Stringer("kind", k))
		return bindings.EInval
	}
	return e.store(dst, out)
}

func (e *Engine) ConfigDefault(dst bindings.OwnedPtr) bindings.Result {
	if rc, ok := e.fault(OpConfig); ok {
		return rc
	}
	return e.store(dst, &configObj{mode: "peer", doc: map[string]any{}})
}

func (e *Engine) ConfigFromStr(dst bindings.OwnedPtr, s string) bindings.Result {
	if rc, ok := e.fault(OpConfig); ok {
		return rc
	}
	cfg, rc := parseConfig([]byte(s))
	if !rc.Ok() {
		return rc
	}
	return e.store(dst, cfg)
}

func (e *Engine) ConfigFromFile(dst bindings.OwnedPtr, path string) bindings.Result {
	if rc, ok := e.fault(OpConfig); ok {
		return rc
	}
	cfg, rc := readConfig(path)
	if !rc.Ok() {
		return rc
	}
	return e.store(dst, cfg)
}

type keyExprObj struct{ expr string }

func (e *Engine) KeyExprFromStr(dst bindings.OwnedPtr, s string) bindings.Result {
	if rc, ok := e.fault(OpKeyExpr); ok {
		return rc
	}
	if !validKeyExpr(s) {
		return bindings.EInval
	}
	return e.store(dst, &keyExprObj{expr: s})
}

func (e *Engine) KeyExprString(k bindings.LoanedPtr) string {
	if o, ok := e.read(k).(*keyExprObj); ok {
		return o.expr
	}
	return ""
}

type bytesObj struct{ data []byte }

func (e *Engine) BytesCopyFromBuf(dst bindings.OwnedPtr, b []byte) bindings.Result {
	if rc, ok := e.fault(OpBytes); ok {
		return rc
	}
	return e.store(dst, &bytesObj{data: append([]byte(nil), b...)})
}

func (e *Engine) BytesCopyOut(b bindings.LoanedPtr, dst []byte) []byte {
	if o, ok := e.read(b).(*bytesObj); ok {
		return append(dst, o.data...)
	}
	return dst
}

func (e *Engine) BytesLen(b bindings.LoanedPtr) int {
	if o, ok := e.read(b).(*bytesObj); ok {
		return len(o.data)
	}
	return 0
}

const defaultEncoding = "zenoh/bytes"

type encodingObj struct{ name string }

func (e *Engine) EncodingFromStr(dst bindings.OwnedPtr, s string) bindings.Result {
	if rc, ok := e.fault(OpEncoding); ok {
		return rc
	}
	if s == "" {
		s = defaultEncoding
	}
	return e.store(dst, &encodingObj{name: s})
}

func (e *Engine) EncodingString(enc bindings.LoanedPtr) string {
	if o, ok := e.read(enc).(*encodingObj); ok {
		return o.name
	}
	return ""
}
