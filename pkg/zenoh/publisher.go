package zenoh

import (
	"runtime"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Publisher is a declared publisher. Close undeclares it.
type Publisher struct {
	h       owned[publisherKind]
	lib     *Library
	ents    *entities
	keyExpr string
}

// KeyExpr returns the key expression the publisher was declared on.
func (p *Publisher) KeyExpr() string {
	return p.keyExpr
}

// Put publishes b. b is consumed in every outcome, including errors, and
// so are the values held by opts. opts may be nil.
func (p *Publisher) Put(b *Bytes, opts *PutOptions) error {
	const op = "publisher put"
	enc, att := opts.take()
	if b == nil {
		enc.discard()
		att.discard()
		return protocolErr(op, ErrNilResource)
	}
	payload, err := b.h.move(op)
	if err != nil {
		enc.discard()
		att.discard()
		return err
	}
	runtime.SetFinalizer(b, nil)

	used := false
	err = p.h.withLoan(op, func(pp bindings.LoanedPtr) error {
		used = true
		rc := p.lib.abi.PublisherPut(pp, payload.ptr(), &bindings.PutOptions{
			Encoding:   enc.ptr(),
			Attachment: att.ptr(),
		})
		if !rc.Ok() {
			return operationErr(op, rc)
		}
		return nil
	})
	if used {
		payload.consumed()
		enc.consumed()
		att.consumed()
	} else {
		payload.discard()
		enc.discard()
		att.discard()
	}
	return err
}

// PutBytes copies data into a new payload and publishes it.
func (p *Publisher) PutBytes(data []byte) error {
	b, err := p.lib.Bytes(data)
	if err != nil {
		return err
	}
	return p.Put(b, nil)
}

// PutString publishes s.
func (p *Publisher) PutString(s string) error {
	return p.PutBytes([]byte(s))
}

// Close undeclares the publisher. Later calls do nothing.
func (p *Publisher) Close() error {
	if p == nil {
		return nil
	}
	runtime.SetFinalizer(p, nil)
	p.h.release()
	p.ents.removePublisher(p)
	return nil
}

func (p *Publisher) finalize() {
	if p.h.release() {
		p.lib.leaked("publisher")
	}
}
