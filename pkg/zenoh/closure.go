package zenoh

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/internal/registry"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/logging"
)

// Handler receives the samples of a subscription. HandleSample runs on a
// thread owned by the engine; the Sample is only valid until it returns.
type Handler interface {
	HandleSample(s *Sample)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(s *Sample)

func (f HandlerFunc) HandleSample(s *Sample) { f(s) }

// Dropper is implemented by handlers that want to know when the engine has
// destroyed their closure. Drop runs once, after the last HandleSample call.
type Dropper interface {
	Drop()
}

// stopper is implemented by handlers that may block inside HandleSample and
// must be woken when the subscriber is closed.
type stopper interface {
	stop()
}

// closures maps the context tokens given to the engine back to their
// registrations. It is process-wide because the native trampolines are.
var closures = registry.New[*registration]()

// RegisteredClosures returns the number of closures the engine has not yet
// dropped.
func RegisteredClosures() int {
	return closures.Len()
}

// registration is the Go state behind one native closure. It stays in the
// table until the drop trampoline runs, so the engine can never resolve a
// token whose state is gone.
type registration struct {
	abi     bindings.ABI
	handler Handler
	log     logging.Logger
	keyExpr string

	mu      sync.Mutex
	closed  bool
	calls   uint64
	lastErr atomic.Pointer[Error]
	done    chan struct{}
}

func newRegistration(abi bindings.ABI, h Handler, log logging.Logger, keyExpr string) *registration {
	return &registration{
		abi:     abi,
		handler: h,
		log:     log,
		keyExpr: keyExpr,
		done:    make(chan struct{}),
	}
}

// enter admits one handler invocation unless the registration was closed.
func (r *registration) enter() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.calls++
	return true
}

// close refuses later invocations. One already admitted may still be running.
func (r *registration) close() {
	r.mu.Lock()
	already := r.closed
	r.closed = true
	r.mu.Unlock()
	if !already {
		if s, ok := r.handler.(stopper); ok {
			s.stop()
		}
	}
}

func (r *registration) invoke(s *Sample) {
	defer func() {
		if v := recover(); v != nil {
			err := callbackErr("subscriber handler", v)
			r.lastErr.Store(err)
			r.log.Error(context.Background(), "zenoh: subscriber handler panicked", "key_expr", r.keyExpr, "err", err)
		}
	}()
	r.handler.HandleSample(s)
}

func (r *registration) dropped() {
	r.close()
	defer close(r.done)
	if d, ok := r.handler.(Dropper); ok {
		defer func() {
			if v := recover(); v != nil {
				err := callbackErr("subscriber drop", v)
				r.lastErr.Store(err)
				r.log.Error(context.Background(), "zenoh: subscriber drop hook panicked", "key_expr", r.keyExpr, "err", err)
			}
		}()
		d.Drop()
	}
}

// callTrampoline is handed to the engine as the closure's call function.
func callTrampoline(ctx uintptr, sp bindings.SamplePtr) {
	r, ok := closures.Get(registry.Token(ctx))
	if !ok || !r.enter() {
		return
	}
	s := &Sample{abi: r.abi, ptr: sp}
	defer s.expire()
	r.invoke(s)
}

// dropTrampoline is handed to the engine as the closure's drop function. The
// token leaves the table here and nowhere else.
func dropTrampoline(ctx uintptr) {
	r, ok := closures.Remove(registry.Token(ctx))
	if !ok {
		return
	}
	r.dropped()
}

// closure owns a native z_owned_closure_sample_t until it is moved into a
// subscriber declaration.
type closure struct {
	h     owned[closureKind]
	token registry.Token
	reg   *registration
}

// register stores r and builds a native closure pointing at it. If the
// closure cannot be built, r is dropped before returning.
func register(abi bindings.ABI, r *registration) (*closure, error) {
	tok := closures.Insert(r)
	c := &closure{token: tok, reg: r}
	err := c.h.init(abi, "closure sample", KindConstruct, func(dst bindings.OwnedPtr) bindings.Result {
		return abi.ClosureSample(dst, callTrampoline, dropTrampoline, uintptr(tok))
	})
	if err != nil {
		dropTrampoline(uintptr(tok))
		return nil, err
	}
	runtime.SetFinalizer(c, (*closure).release)
	return c, nil
}

// release drops a closure that was never moved into a subscriber. The engine
// answers with the drop trampoline.
func (c *closure) release() {
	runtime.SetFinalizer(c, nil)
	c.h.release()
}

// ensureDropped runs the drop trampoline if the engine has not. It is used
// after a failed declaration consumed the closure.
func (c *closure) ensureDropped() {
	if _, ok := closures.Get(c.token); ok {
		dropTrampoline(uintptr(c.token))
	}
}
