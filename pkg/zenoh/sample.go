package zenoh

import (
	"sync"
	"time"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Sample is the call-scoped view of one delivered message. Its accessors
// panic with a protocol error if called after the handler returned; use Copy
// or Payload to keep the data.
type Sample struct {
	abi bindings.ABI
	ptr bindings.SamplePtr

	// mu is read-held for every native access; expire takes it exclusively,
	// so no access can straddle the end of the callback.
	mu      sync.RWMutex
	expired bool
}

func (s *Sample) expire() {
	s.mu.Lock()
	s.expired = true
	s.mu.Unlock()
}

// access runs fn while the sample is guaranteed live.
func (s *Sample) access(op string, fn func()) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.expired {
		panic(protocolErr(op, ErrSampleExpired))
	}
	fn()
}

// KeyExpr returns the key expression the sample was published on.
func (s *Sample) KeyExpr() (ke string) {
	s.access("sample keyexpr", func() {
		ke = s.abi.KeyExprString(s.abi.SampleKeyExpr(s.ptr))
	})
	return ke
}

// Payload returns a copy of the payload.
func (s *Sample) Payload() []byte {
	return s.PayloadRef().Bytes()
}

// PayloadRef returns the loaned payload without copying it.
func (s *Sample) PayloadRef() (r BytesRef) {
	s.access("sample payload", func() {
		r = BytesRef{s: s, ptr: s.abi.SamplePayload(s.ptr)}
	})
	return r
}

// Encoding returns the payload encoding name.
func (s *Sample) Encoding() (enc string) {
	s.access("sample encoding", func() {
		enc = s.abi.EncodingString(s.abi.SampleEncoding(s.ptr))
	})
	return enc
}

// Copy returns an owned copy of the sample that outlives the callback.
func (s *Sample) Copy() Received {
	return Received{
		KeyExpr:    s.KeyExpr(),
		Payload:    s.Payload(),
		Encoding:   s.Encoding(),
		ReceivedAt: time.Now(),
	}
}

// Received is a sample copied out of its callback.
type Received struct {
	KeyExpr    string
	Payload    []byte
	Encoding   string
	ReceivedAt time.Time
}
