package zenoh

import (
	"runtime"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// Common encoding names.
const (
	EncodingBytes           = "zenoh/bytes"
	EncodingString          = "zenoh/string"
	EncodingTextPlain       = "text/plain"
	EncodingTextJSON        = "text/json"
	EncodingApplicationJSON = "application/json"
	EncodingApplicationCBOR = "application/cbor"
	EncodingApplicationYAML = "application/yaml"
	EncodingImageJPEG       = "image/jpeg"
	EncodingImagePNG        = "image/png"
)

// Encoding is an owned payload encoding. Setting it on publisher or put
// options moves it; the caller must not use it afterwards.
type Encoding struct {
	h   owned[encodingKind]
	lib *Library
}

// Encoding parses s, a MIME type optionally followed by ";" and a schema.
func (l *Library) Encoding(s string) (*Encoding, error) {
	return l.newEncoding("encoding from string", func(dst bindings.OwnedPtr) bindings.Result {
		return l.abi.EncodingFromStr(dst, s)
	})
}

func (l *Library) newEncoding(op string, ctor func(bindings.OwnedPtr) bindings.Result) (*Encoding, error) {
	e := &Encoding{lib: l}
	if err := e.h.init(l.abi, op, KindConstruct, ctor); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(e, (*Encoding).finalize)
	return e, nil
}

// String returns the encoding name, or "" once e was moved or closed.
func (e *Encoding) String() string {
	var out string
	_ = e.h.withLoan("encoding to string", func(p bindings.LoanedPtr) error {
		out = e.lib.abi.EncodingString(p)
		return nil
	})
	return out
}

// Clone returns an independent copy of e.
func (e *Encoding) Clone() (*Encoding, error) {
	var out *Encoding
	err := e.h.withLoan("encoding clone", func(src bindings.LoanedPtr) error {
		var err error
		out, err = e.lib.newEncoding("encoding clone", func(dst bindings.OwnedPtr) bindings.Result {
			return e.lib.abi.Clone(bindings.KindEncoding, dst, src)
		})
		return err
	})
	return out, err
}

// Close releases the encoding. It is a no-op after the encoding was moved.
func (e *Encoding) Close() error {
	if e == nil {
		return nil
	}
	runtime.SetFinalizer(e, nil)
	e.h.release()
	return nil
}

func (e *Encoding) finalize() {
	if e.h.release() {
		e.lib.leaked("encoding")
	}
}
