package zenoh

import (
	"runtime"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
)

// KeyExpr is an owned, validated key expression. Declaring a publisher or a
// subscriber only borrows it, so one KeyExpr can serve many declarations.
type KeyExpr struct {
	h    owned[keyExprKind]
	lib  *Library
	expr string
}

// KeyExpr validates s and returns it as a key expression. Invalid
// expressions fail with a construction error carrying ResultEInval.
func (l *Library) KeyExpr(s string) (*KeyExpr, error) {
	return l.newKeyExpr("keyexpr from string", func(dst bindings.OwnedPtr) bindings.Result {
		return l.abi.KeyExprFromStr(dst, s)
	})
}

func (l *Library) newKeyExpr(op string, ctor func(bindings.OwnedPtr) bindings.Result) (*KeyExpr, error) {
	k := &KeyExpr{lib: l}
	if err := k.h.init(l.abi, op, KindConstruct, ctor); err != nil {
		return nil, err
	}
	_ = k.h.withLoan(op, func(p bindings.LoanedPtr) error {
		k.expr = l.abi.KeyExprString(p)
		return nil
	})
	runtime.SetFinalizer(k, (*KeyExpr).finalize)
	return k, nil
}

// String returns the canonical form of the expression. It keeps working
// after Close.
func (k *KeyExpr) String() string {
	if k == nil {
		return ""
	}
	return k.expr
}

// Clone returns an independent copy of k.
func (k *KeyExpr) Clone() (*KeyExpr, error) {
	var out *KeyExpr
	err := k.h.withLoan("keyexpr clone", func(src bindings.LoanedPtr) error {
		var err error
		out, err = k.lib.newKeyExpr("keyexpr clone", func(dst bindings.OwnedPtr) bindings.Result {
			return k.lib.abi.Clone(bindings.KindKeyExpr, dst, src)
		})
		return err
	})
	return out, err
}

// Close releases the key expression. Entities declared on it are unaffected.
func (k *KeyExpr) Close() error {
	if k == nil {
		return nil
	}
	runtime.SetFinalizer(k, nil)
	k.h.release()
	return nil
}

func (k *KeyExpr) finalize() {
	if k.h.release() {
		k.lib.leaked("keyexpr")
	}
}
