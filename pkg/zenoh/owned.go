package zenoh

import (
	"sync"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// kindTag ties an owned handle to one native resource kind at compile time,
// so a moved Bytes cannot be handed to a call expecting a moved Encoding.
type kindTag interface {
	kind() bindings.Kind
}

type (
	configKind     struct{}
	sessionKind    struct{}
	keyExprKind    struct{}
	bytesKind      struct{}
	encodingKind   struct{}
	publisherKind  struct{}
	subscriberKind struct{}
	closureKind    struct{}
)

func (configKind) kind() bindings.Kind     { return bindings.KindConfig }
func (sessionKind) kind() bindings.Kind    { return bindings.KindSession }
func (keyExprKind) kind() bindings.Kind    { return bindings.KindKeyExpr }
func (bytesKind) kind() bindings.Kind      { return bindings.KindBytes }
func (encodingKind) kind() bindings.Kind   { return bindings.KindEncoding }
func (publisherKind) kind() bindings.Kind  { return bindings.KindPublisher }
func (subscriberKind) kind() bindings.Kind { return bindings.KindSubscriber }
func (closureKind) kind() bindings.Kind    { return bindings.KindClosureSample }

type ownState uint8

const (
	stateEmpty ownState = iota
	stateLive
	stateMoved
	stateReleased
)

// owned is the lifecycle core shared by every resource wrapper. It holds the
// backing block of one native value and guarantees that value is either
// dropped exactly once or moved out exactly once.
type owned[K kindTag] struct {
	mu    sync.Mutex
	abi   bindings.ABI
	ptr   bindings.OwnedPtr
	state ownState
}

func kindOf[K kindTag]() bindings.Kind {
	var k K
	return k.kind()
}

// init allocates the backing block and runs ctor on it. If ctor fails the
// block is freed without a drop, since nothing was constructed in it.
func (o *owned[K]) init(abi bindings.ABI, op string, ek ErrorKind, ctor func(dst bindings.OwnedPtr) bindings.Result) error {
	k := kindOf[K]()
	p, err := abi.Alloc(k)
	if err != nil {
		return &Error{Kind: KindConstruct, Op: op, Cause: err}
	}
	if rc := ctor(p); !rc.Ok() {
		abi.Free(k, p)
		return &Error{Kind: ek, Op: op, Code: Result(rc)}
	}

	o.mu.Lock()
	o.abi = abi
	o.ptr = p
	o.state = stateLive
	o.mu.Unlock()
	return nil
}

func (o *owned[K]) checkLocked(op string) error {
	switch o.state {
	case stateLive:
		return nil
	case stateMoved:
		return protocolErr(op, ErrMoved)
	default:
		return protocolErr(op, ErrReleased)
	}
}

// withLoan runs fn with a loan of the value. The loan is taken fresh and is
// only valid inside fn; the owner cannot be released or moved meanwhile.
func (o *owned[K]) withLoan(op string, fn func(l bindings.LoanedPtr) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkLocked(op); err != nil {
		return err
	}
	return fn(o.abi.Loan(kindOf[K](), o.ptr))
}

// move hands the value to a consuming call and leaves the owner permanently
// empty. Moving twice, or loaning after a move, fails with ErrMoved.
func (o *owned[K]) move(op string) (moved[K], error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.checkLocked(op); err != nil {
		return moved[K]{}, err
	}
	m := moved[K]{abi: o.abi, block: o.ptr}
	o.ptr = nil
	o.state = stateMoved
	return m, nil
}

// release drops and frees a live value. It reports whether this call did the
// release; later calls, and calls after a move, do nothing.
func (o *owned[K]) release() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != stateLive {
		if o.state == stateEmpty {
			o.state = stateReleased
		}
		return false
	}
	k := kindOf[K]()
	o.abi.Drop(k, o.abi.Move(k, o.ptr))
	o.abi.Free(k, o.ptr)
	o.ptr = nil
	o.state = stateReleased
	return true
}

func (o *owned[K]) live() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == stateLive
}

// moved is the token produced by owned.move. Exactly one of consumed or
// discard must be called on it.
type moved[K kindTag] struct {
	abi   bindings.ABI
	block bindings.OwnedPtr
}

func (m moved[K]) empty() bool { return m.block == nil }

// ptr returns the z_moved_*_t for the consuming call, or nil for an absent
// optional argument.
func (m moved[K]) ptr() bindings.MovedPtr {
	if m.block == nil {
		return nil
	}
	return m.abi.Move(kindOf[K](), m.block)
}

// consumed frees the backing block after a native call took the value,
// leaving a gravestone behind.
func (m moved[K]) consumed() {
	if m.block != nil {
		m.abi.Free(kindOf[K](), m.block)
	}
}

// discard drops the value when the consuming call never happened.
func (m moved[K]) discard() {
	if m.block != nil {
		k := kindOf[K]()
		m.abi.Drop(k, m.abi.Move(k, m.block))
		m.abi.Free(k, m.block)
	}
}
