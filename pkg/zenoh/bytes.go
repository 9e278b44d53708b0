package zenoh

import (
	"runtime"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Bytes is an owned payload. Put consumes it; afterwards the value is empty
// whatever the outcome of the put.
type Bytes struct {
	h   owned[bytesKind]
	lib *Library
}

// Bytes copies b into a new payload.
func (l *Library) Bytes(b []byte) (*Bytes, error) {
	return l.newBytes("bytes copy from buf", func(dst bindings.OwnedPtr) bindings.Result {
		return l.abi.BytesCopyFromBuf(dst, b)
	})
}

// BytesFromString copies s into a new payload.
func (l *Library) BytesFromString(s string) (*Bytes, error) {
	return l.Bytes([]byte(s))
}

func (l *Library) newBytes(op string, ctor func(bindings.OwnedPtr) bindings.Result) (*Bytes, error) {
	b := &Bytes{lib: l}
	if err := b.h.init(l.abi, op, KindConstruct, ctor); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(b, (*Bytes).finalize)
	return b, nil
}

// ToBytes returns a copy of the payload.
func (b *Bytes) ToBytes() ([]byte, error) {
	var out []byte
	err := b.h.withLoan("bytes to slice", func(p bindings.LoanedPtr) error {
		out = b.lib.abi.BytesCopyOut(p, make([]byte, 0, b.lib.abi.BytesLen(p)))
		return nil
	})
	return out, err
}

// String returns the payload as a string, or "" once b was moved or closed.
func (b *Bytes) String() string {
	out, err := b.ToBytes()
	if err != nil {
		return ""
	}
	return string(out)
}

// Len returns the payload size, or 0 once b was moved or closed.
func (b *Bytes) Len() int {
	n := 0
	_ = b.h.withLoan("bytes len", func(p bindings.LoanedPtr) error {
		n = b.lib.abi.BytesLen(p)
		return nil
	})
	return n
}

// Empty reports whether b no longer holds a value, because it was moved into
// a put or closed.
func (b *Bytes) Empty() bool {
	return !b.h.live()
}

// Clone returns an independent copy of b.
func (b *Bytes) Clone() (*Bytes, error) {
	var out *Bytes
	err := b.h.withLoan("bytes clone", func(src bindings.LoanedPtr) error {
		var err error
		out, err = b.lib.newBytes("bytes clone", func(dst bindings.OwnedPtr) bindings.Result {
			return b.lib.abi.Clone(bindings.KindBytes, dst, src)
		})
		return err
	})
	return out, err
}

// Close releases the payload. It is a no-op after a put consumed it.
func (b *Bytes) Close() error {
	if b == nil {
		return nil
	}
	runtime.SetFinalizer(b, nil)
	b.h.release()
	return nil
}

func (b *Bytes) finalize() {
	if b.h.release() {
		b.lib.leaked("bytes")
	}
}

// BytesRef is a loaned view of a sample payload. It is valid only inside the
// subscriber callback that produced it.
type BytesRef struct {
	s   *Sample
	ptr bindings.LoanedPtr
}

// Len returns the payload size.
func (r BytesRef) Len() (n int) {
	r.s.access("bytes len", func() {
		n = r.s.abi.BytesLen(r.ptr)
	})
	return n
}

// Bytes returns a copy of the payload.
func (r BytesRef) Bytes() []byte {
	return r.AppendTo(nil)
}

// AppendTo appends the payload to dst, letting handlers reuse a buffer.
func (r BytesRef) AppendTo(dst []byte) (out []byte) {
	r.s.access("bytes to slice", func() {
		out = r.s.abi.BytesCopyOut(r.ptr, dst)
	})
	return out
}

func (r BytesRef) String() string {
	return string(r.Bytes())
}
