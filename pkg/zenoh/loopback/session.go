package loopback

import (
	"sync"
	"unsafe"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

type sessionObj struct {
	id     uuid.UUID
	mode   string
	closed bool
	pubs   map[*publisherObj]struct{}
	subs   map[*subscriberObj]struct{}
}

type publisherObj struct {
	sess       *sessionObj
	keyExpr    string
	encoding   string
	congestion bindings.CongestionControl
	priority   bindings.Priority
	express    bool
	undeclared bool
}

type closureObj struct {
	call bindings.CallFunc
	drop bindings.DropFunc
	ctx  uintptr
	once sync.Once
}

// fire runs the drop function once.
func (c *closureObj) fire() {
	c.once.Do(func() { c.drop(c.ctx) })
}

type delivery struct {
	keyExpr    string
	payload    []byte
	encoding   string
	attachment []byte
}

type subscriberObj struct {
	engine   *Engine
	sess     *sessionObj
	keyExpr  string
	origin   bindings.Locality
	closure  *closureObj
	queue    chan delivery
	stop     chan struct{}
	stopOnce sync.Once
}

// sampleView backs the SamplePtr handed to a closure. Its cells are
// gravestoned when the call returns.
type sampleView struct {
	keyExpr  cell
	payload  cell
	encoding cell
}

func (e *Engine) Open(dst bindings.OwnedPtr, cfg bindings.MovedPtr, _ *bindings.OpenOptions) bindings.Result {
	obj := e.take(cfg)
	if rc, ok := e.fault(OpOpen); ok {
		return rc
	}
	c, ok := obj.(*configObj)
	if !ok {
		return bindings.ENull
	}
	s := &sessionObj{
		id:   uuid.New(),
		mode: c.mode,
		pubs: make(map[*publisherObj]struct{}),
		subs: make(map[*subscriberObj]struct{}),
	}
	e.mu.Lock()
	e.sessions[s] = struct{}{}
	e.mu.Unlock()
	Logger().Debug("loopback: session opened", zap.Stringer("zid", s.id), zap.String("mode", s.mode))
	return e.store(dst, s)
}

func (e *Engine) Close(s bindings.LoanedPtr, _ *bindings.CloseOptions) bindings.Result {
	if rc, ok := e.fault(OpClose); ok {
		return rc
	}
	sess, ok := e.read(s).(*sessionObj)
	if !ok {
		return bindings.ENull
	}
	e.closeSession(sess)
	return bindings.OK
}

// closeSession undeclares everything declared on s. Later operations on s
// report ESessionClosed.
func (e *Engine) closeSession(s *sessionObj) {
	e.mu.Lock()
	if s.closed {
		e.mu.Unlock()
		return
	}
	s.closed = true
	delete(e.sessions, s)
	subs := make([]*subscriberObj, 0, len(s.subs))
	for sub := range s.subs {
		subs = append(subs, sub)
	}
	for pub := range s.pubs {
		pub.undeclared = true
	}
	s.subs = map[*subscriberObj]struct{}{}
	s.pubs = map[*publisherObj]struct{}{}
	e.mu.Unlock()

	for _, sub := range subs {
		sub.halt()
	}
	Logger().Debug("loopback: session closed", zap.Stringer("zid", s.id))
}

func (e *Engine) SessionZID(s bindings.LoanedPtr) bindings.ZID {
	if sess, ok := e.read(s).(*sessionObj); ok {
		return bindings.ZID(sess.id)
	}
	return bindings.ZID{}
}

func (e *Engine) DeclarePublisher(s bindings.LoanedPtr, dst bindings.OwnedPtr, k bindings.LoanedPtr, opts *bindings.PublisherOptions) bindings.Result {
	var o bindings.PublisherOptions
	if opts != nil {
		o = *opts
	}
	enc, _ := e.take(o.Encoding).(*encodingObj)
	if rc, ok := e.fault(OpDeclarePublisher); ok {
		return rc
	}
	sess, ok := e.read(s).(*sessionObj)
	if !ok {
		return bindings.ENull
	}
	ke, ok := e.read(k).(*keyExprObj)
	if !ok {
		return bindings.ENull
	}
	pub := &publisherObj{
		sess:       sess,
		keyExpr:    ke.expr,
		encoding:   defaultEncoding,
		congestion: o.CongestionControl,
		priority:   o.Priority,
		express:    o.Express,
	}
	if enc != nil {
		pub.encoding = enc.name
	}

	e.mu.Lock()
	if sess.closed {
		e.mu.Unlock()
		return bindings.ESessionClosed
	}
	sess.pubs[pub] = struct{}{}
	e.mu.Unlock()
	return e.store(dst, pub)
}

func (e *Engine) undeclarePublisher(p *publisherObj) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p.undeclared = true
	delete(p.sess.pubs, p)
}

func (e *Engine) PublisherPut(p bindings.LoanedPtr, payload bindings.MovedPtr, opts *bindings.PutOptions) bindings.Result {
	var o bindings.PutOptions
	if opts != nil {
		o = *opts
	}
	data, _ := e.take(payload).(*bytesObj)
	enc, _ := e.take(o.Encoding).(*encodingObj)
	att, _ := e.take(o.Attachment).(*bytesObj)
	if rc, ok := e.fault(OpPut); ok {
		return rc
	}
	pub, ok := e.read(p).(*publisherObj)
	if !ok || data == nil {
		return bindings.ENull
	}

	d := delivery{keyExpr: pub.keyExpr, payload: data.data, encoding: pub.encoding}
	if enc != nil {
		d.encoding = enc.name
	}
	if att != nil {
		d.attachment = att.data
	}

	e.mu.Lock()
	if pub.undeclared || pub.sess.closed {
		e.mu.Unlock()
		return bindings.ESessionClosed
	}
	var targets []*subscriberObj
	for s := range e.sessions {
		for sub := range s.subs {
			if sub.accepts(pub.sess) && intersects(sub.keyExpr, pub.keyExpr) {
				targets = append(targets, sub)
			}
		}
	}
	congestion := pub.congestion
	e.mu.Unlock()

	for _, sub := range targets {
		sub.enqueue(d, congestion)
	}
	return bindings.OK
}

func (e *Engine) ClosureSample(dst bindings.OwnedPtr, call bindings.CallFunc, drop bindings.DropFunc, ctx uintptr) bindings.Result {
	if rc, ok := e.fault(OpClosure); ok {
		return rc
	}
	if call == nil || drop == nil {
		return bindings.EInval
	}
	return e.store(dst, &closureObj{call: call, drop: drop, ctx: ctx})
}

func (e *Engine) DeclareSubscriber(s bindings.LoanedPtr, dst bindings.OwnedPtr, k bindings.LoanedPtr, closure bindings.MovedPtr, opts *bindings.SubscriberOptions) bindings.Result {
	cl, _ := e.take(closure).(*closureObj)
	if cl == nil {
		return bindings.ENull
	}
	// Every failure below still owns the closure and must drop it.
	rc := func() bindings.Result {
		if rc, ok := e.fault(OpDeclareSubscriber); ok {
			return rc
		}
		sess, ok := e.read(s).(*sessionObj)
		if !ok {
			return bindings.ENull
		}
		ke, ok := e.read(k).(*keyExprObj)
		if !ok {
			return bindings.ENull
		}
		sub := &subscriberObj{
			engine:  e,
			sess:    sess,
			keyExpr: ke.expr,
			closure: cl,
			origin:  origin(opts),
			queue:   make(chan delivery, e.queueSize),
			stop:    make(chan struct{}),
		}

		e.mu.Lock()
		if sess.closed {
			e.mu.Unlock()
			return bindings.ESessionClosed
		}
		sess.subs[sub] = struct{}{}
		e.workers.Add(1)
		e.mu.Unlock()

		go sub.run()
		return e.store(dst, sub)
	}()
	if !rc.Ok() {
		cl.fire()
	}
	return rc
}

func origin(opts *bindings.SubscriberOptions) bindings.Locality {
	if opts == nil {
		return bindings.LocalityDefault
	}
	return opts.AllowedOrigin
}

// accepts reports whether s takes publications made on from.
func (s *subscriberObj) accepts(from *sessionObj) bool {
	switch s.origin {
	case bindings.LocalitySessionLocal:
		return from == s.sess
	case bindings.LocalityRemote:
		return from != s.sess
	default:
		return true
	}
}

func (e *Engine) undeclareSubscriber(s *subscriberObj) {
	e.mu.Lock()
	delete(s.sess.subs, s)
	e.mu.Unlock()
	s.halt()
}

func (s *subscriberObj) halt() {
	s.stopOnce.Do(func() { close(s.stop) })
}

func (s *subscriberObj) enqueue(d delivery, cc bindings.CongestionControl) {
	if cc == bindings.CongestionBlock {
		select {
		case s.queue <- d:
		case <-s.stop:
		}
		return
	}
	select {
	case s.queue <- d:
	case <-s.stop:
	default:
		s.engine.discarded.Add(1)
		Logger().Debug("loopback: sample dropped by congestion control", zap.String("key_expr", s.keyExpr))
	}
}

// run is the delivery goroutine of one subscriber. The closure is dropped
// here, after the last call returned.
func (s *subscriberObj) run() {
	defer s.engine.workers.Done()
	defer s.closure.fire()
	for {
		select {
		case <-s.stop:
			return
		case d := <-s.queue:
			select {
			case <-s.stop:
				return
			default:
			}
			s.deliver(d)
		}
	}
}

func (s *subscriberObj) deliver(d delivery) {
	v := &sampleView{
		keyExpr:  cell{kind: bindings.KindKeyExpr, obj: &keyExprObj{expr: d.keyExpr}},
		payload:  cell{kind: bindings.KindBytes, obj: &bytesObj{data: d.payload}},
		encoding: cell{kind: bindings.KindEncoding, obj: &encodingObj{name: d.encoding}},
	}
	defer func() {
		if r := recover(); r != nil {
			Logger().Error("loopback: closure call panicked", zap.String("key_expr", s.keyExpr), zap.Any("panic", r))
		}
		s.engine.mu.Lock()
		v.keyExpr.obj = nil
		v.payload.obj = nil
		v.encoding.obj = nil
		s.engine.mu.Unlock()
	}()
	s.closure.call(s.closure.ctx, bindings.SamplePtr(unsafe.Pointer(v)))
}

func (e *Engine) SamplePayload(sp bindings.SamplePtr) bindings.LoanedPtr {
	return bindings.LoanedPtr(unsafe.Pointer(&(*sampleView)(sp).payload))
}

func (e *Engine) SampleKeyExpr(sp bindings.SamplePtr) bindings.LoanedPtr {
	return bindings.LoanedPtr(unsafe.Pointer(&(*sampleView)(sp).keyExpr))
}

func (e *Engine) SampleEncoding(sp bindings.SamplePtr) bindings.LoanedPtr {
	return bindings.LoanedPtr(unsafe.Pointer(&(*sampleView)(sp).encoding))
}
