package zenoh

import (
	"context"
	"encoding/hex"
	"errors"
	"runtime"
	"sync"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/logging"
)

// SessionState is the lifecycle position of a Session.
type SessionState uint8

const (
	SessionCreated SessionState = iota
	SessionOpen
	SessionClosed
)

func (s SessionState) String() string {
	switch s {
	case SessionCreated:
		return "created"
	case SessionOpen:
		return "open"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ZID is the engine-assigned session identifier.
type ZID [16]byte

func (z ZID) String() string {
	return hex.EncodeToString(z[:])
}

// Session is a connection to the zenoh network. It moves through Created,
// Open and Closed exactly once each.
type Session struct {
	lib *Library

	mu    sync.Mutex
	state SessionState
	h     owned[sessionKind]
	zid   ZID
	ents  *entities
}

// entities tracks the publishers and subscribers declared on a session so
// Close can undeclare them. It is separate from Session so that declared
// entities do not keep the Session itself reachable.
type entities struct {
	mu   sync.Mutex
	pubs map[*Publisher]struct{}
	subs map[*Subscriber]struct{}
}

func newEntities() *entities {
	return &entities{
		pubs: make(map[*Publisher]struct{}),
		subs: make(map[*Subscriber]struct{}),
	}
}

func (e *entities) addPublisher(p *Publisher) {
	e.mu.Lock()
	e.pubs[p] = struct{}{}
	e.mu.Unlock()
}

func (e *entities) removePublisher(p *Publisher) {
	e.mu.Lock()
	delete(e.pubs, p)
	e.mu.Unlock()
}

func (e *entities) addSubscriber(s *Subscriber) {
	e.mu.Lock()
	e.subs[s] = struct{}{}
	e.mu.Unlock()
}

func (e *entities) removeSubscriber(s *Subscriber) {
	e.mu.Lock()
	delete(e.subs, s)
	e.mu.Unlock()
}

func (e *entities) snapshot() ([]*Publisher, []*Subscriber) {
	e.mu.Lock()
	defer e.mu.Unlock()
	pubs := make([]*Publisher, 0, len(e.pubs))
	for p := range e.pubs {
		pubs = append(pubs, p)
	}
	subs := make([]*Subscriber, 0, len(e.subs))
	for s := range e.subs {
		subs = append(subs, s)
	}
	return pubs, subs
}

// NewSession returns a session in the Created state.
func (l *Library) NewSession() *Session {
	s := &Session{lib: l, ents: newEntities()}
	runtime.SetFinalizer(s, (*Session).finalize)
	return s
}

// Open creates a session and opens it with cfg. A nil cfg selects the
// default configuration.
func (l *Library) Open(cfg *Config) (*Session, error) {
	s := l.NewSession()
	if err := s.Open(cfg); err != nil {
		return nil, err
	}
	return s, nil
}

// Open connects the session. cfg is consumed whatever the outcome; a nil cfg
// selects the default configuration. If the engine refuses the configuration
// the session stays Created and Close remains a safe no-op.
func (s *Session) Open(cfg *Config) error {
	const op = "open"
	if cfg == nil {
		var err error
		if cfg, err = s.lib.ConfigDefault(); err != nil {
			return err
		}
	}
	m, err := cfg.h.move(op)
	if err != nil {
		return err
	}
	runtime.SetFinalizer(cfg, nil)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionCreated {
		m.discard()
		return stateErr(op, s.state)
	}

	abi := s.lib.abi
	used := false
	err = s.h.init(abi, op, KindOperation, func(dst bindings.OwnedPtr) bindings.Result {
		used = true
		return abi.Open(dst, m.ptr(), &bindings.OpenOptions{})
	})
	if used {
		m.consumed()
	} else {
		m.discard()
	}
	if err != nil {
		s.lib.log.Warn(context.Background(), "zenoh: session open failed", "err", err)
		return err
	}
	_ = s.h.withLoan(op, func(p bindings.LoanedPtr) error {
		s.zid = ZID(abi.SessionZID(p))
		return nil
	})
	s.state = SessionOpen
	s.lib.log.Info(s.logContext(), "zenoh: session opened")
	return nil
}

// OpenString parses conf as a configuration document and opens the session
// with it. A malformed document leaves the session Created.
func (s *Session) OpenString(conf string) error {
	var (
		cfg *Config
		err error
	)
	if conf == "" {
		cfg, err = s.lib.ConfigDefault()
	} else {
		cfg, err = s.lib.ConfigFromString(conf)
	}
	if err != nil {
		return err
	}
	return s.Open(cfg)
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ZID returns the session identifier, or the zero ZID before Open.
func (s *Session) ZID() ZID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zid
}

// Close undeclares every subscriber and publisher still declared on the
// session, closes it and releases it. The native close may fail, for example
// on a network timeout; the error is logged and returned but the session is
// released anyway. Close on a session that is not Open does nothing and
// returns nil.
func (s *Session) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionOpen {
		return nil
	}
	s.state = SessionClosed
	runtime.SetFinalizer(s, nil)

	var errs []error
	pubs, subs := s.ents.snapshot()
	for _, sub := range subs {
		errs = append(errs, sub.Close())
	}
	for _, pub := range pubs {
		errs = append(errs, pub.Close())
	}

	ctx := s.logContext()
	abi := s.lib.abi
	_ = s.h.withLoan("close", func(p bindings.LoanedPtr) error {
		if rc := abi.Close(p, &bindings.CloseOptions{}); !rc.Ok() {
			err := operationErr("close", rc)
			s.lib.log.Error(ctx, "zenoh: session close failed", "err", err)
			errs = append(errs, err)
		}
		return nil
	})
	s.h.release()
	s.lib.log.Info(ctx, "zenoh: session closed", "entities", len(pubs)+len(subs))
	return errors.Join(errs...)
}

// logContext tags records with the session id. Callers hold s.mu.
func (s *Session) logContext() context.Context {
	return logging.ContextWith(context.Background(), "zid", s.zid.String())
}

func (s *Session) finalize() {
	if s.State() == SessionOpen {
		s.lib.leaked("session")
		_ = s.Close()
	}
}

// loanOpen runs fn with a loan of the session if it is Open.
func (s *Session) loanOpen(op string, fn func(bindings.LoanedPtr) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != SessionOpen {
		return stateErr(op, s.state)
	}
	return s.h.withLoan(op, fn)
}

// DeclarePublisher declares a publisher on ke. The session and ke are only
// borrowed for the duration of the call. opts.Encoding, if set, is moved.
func (s *Session) DeclarePublisher(ke *KeyExpr, opts *PublisherOptions) (*Publisher, error) {
	const op = "declare publisher"
	var bopts bindings.PublisherOptions
	var enc moved[encodingKind]
	if opts != nil {
		if opts.Encoding != nil {
			m, err := opts.Encoding.h.move(op)
			if err != nil {
				return nil, err
			}
			enc = m
		}
		bopts.Priority = opts.Priority
		bopts.CongestionControl = opts.CongestionControl
		bopts.Reliability = opts.Reliability
		bopts.Express = opts.Express
	}
	if ke == nil {
		enc.discard()
		return nil, protocolErr(op, ErrNilResource)
	}

	abi := s.lib.abi
	p := &Publisher{lib: s.lib, ents: s.ents, keyExpr: ke.String()}
	used := false
	// The publisher is tracked while s.mu is held so a concurrent Close
	// cannot miss it.
	err := s.loanOpen(op, func(sp bindings.LoanedPtr) error {
		err := ke.h.withLoan(op, func(kp bindings.LoanedPtr) error {
			return p.h.init(abi, op, KindOperation, func(dst bindings.OwnedPtr) bindings.Result {
				used = true
				bopts.Encoding = enc.ptr()
				return abi.DeclarePublisher(sp, dst, kp, &bopts)
			})
		})
		if err == nil {
			s.ents.addPublisher(p)
		}
		return err
	})
	if used {
		enc.consumed()
	} else {
		enc.discard()
	}
	if err != nil {
		return nil, err
	}
	runtime.SetFinalizer(p, (*Publisher).finalize)
	return p, nil
}

// DeclareSubscriber declares a subscriber on ke that delivers samples to h.
// If h implements Dropper it is told when the engine has released it, which
// also happens when the declaration fails.
func (s *Session) DeclareSubscriber(ke *KeyExpr, h Handler, opts *SubscriberOptions) (*Subscriber, error) {
	const op = "declare subscriber"
	if h == nil {
		return nil, protocolErr(op, ErrNilHandler)
	}
	if ke == nil {
		return nil, protocolErr(op, ErrNilResource)
	}
	var bopts bindings.SubscriberOptions
	if opts != nil {
		bopts.Reliability = opts.Reliability
		bopts.AllowedOrigin = opts.AllowedOrigin
	}

	abi := s.lib.abi
	reg := newRegistration(abi, h, s.lib.log.With("key_expr", ke.String()), ke.String())
	c, err := register(abi, reg)
	if err != nil {
		return nil, err
	}
	cm, err := c.h.move(op)
	if err != nil {
		c.release()
		return nil, err
	}
	runtime.SetFinalizer(c, nil)

	sub := &Subscriber{lib: s.lib, ents: s.ents, reg: reg, keyExpr: ke.String()}
	used := false
	err = s.loanOpen(op, func(sp bindings.LoanedPtr) error {
		err := ke.h.withLoan(op, func(kp bindings.LoanedPtr) error {
			return sub.h.init(abi, op, KindOperation, func(dst bindings.OwnedPtr) bindings.Result {
				used = true
				return abi.DeclareSubscriber(sp, dst, kp, cm.ptr(), &bopts)
			})
		})
		if err == nil {
			s.ents.addSubscriber(sub)
		}
		return err
	})
	if used {
		cm.consumed()
	} else {
		cm.discard()
	}
	if err != nil {
		c.ensureDropped()
		return nil, err
	}
	runtime.SetFinalizer(sub, (*Subscriber).finalize)
	return sub, nil
}
