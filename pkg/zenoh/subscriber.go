package zenoh

import "runtime"

// Subscriber is a declared subscriber. Its handler keeps receiving samples
// until Close.
type Subscriber struct {
	h       owned[subscriberKind]
	lib     *Library
	ents    *entities
	reg     *registration
	keyExpr string
}

// KeyExpr returns the key expression the subscriber was declared on.
func (s *Subscriber) KeyExpr() string {
	return s.keyExpr
}

// Close undeclares the subscriber without waiting for a handler call that is
// already running; no new call starts once Close returns. Close may be
// called from inside the handler. Wait on Done to know when the engine has
// released the handler.
func (s *Subscriber) Close() error {
	if s == nil {
		return nil
	}
	runtime.SetFinalizer(s, nil)
	s.reg.close()
	s.h.release()
	s.ents.removeSubscriber(s)
	return nil
}

// Done is closed once the engine has dropped the handler. After that no
// handler call is running or will run.
func (s *Subscriber) Done() <-chan struct{} {
	return s.reg.done
}

// Err returns the error from the most recent handler panic, or nil.
func (s *Subscriber) Err() error {
	if err := s.reg.lastErr.Load(); err != nil {
		return err
	}
	return nil
}

// Delivered returns how many handler calls have been started.
func (s *Subscriber) Delivered() uint64 {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	return s.reg.calls
}

func (s *Subscriber) finalize() {
	s.reg.close()
	if s.h.release() {
		s.lib.leaked("subscriber")
	}
}
