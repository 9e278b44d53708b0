// Package bindings is the ABI boundary between the Go binding and the native
// zenoh engine.
//
// # Design Principles
//
//  1. Isolation: ALL cgo code lives in this package. No other package may
//     import "C".
//
//  2. Typed access modes: native resources are reachable only as OwnedPtr,
//     LoanedPtr or MovedPtr. The three types are distinct so a loaned view
//     cannot be handed to a call that consumes a moved handle without an
//     explicit Move.
//
//  3. Minimal surface: the ABI interface lists only the calls the binding
//     uses. Every method maps to one zenoh-c function (or a tiny shim over
//     it) and returns the raw Result code.
//
//  4. No policy: this package does not track lifetimes. Exactly-once release,
//     move bookkeeping and callback safety belong to pkg/zenoh.
//
// # Build Tags
//
// The zenoh-c implementation is compiled with `-tags zenohc` and cgo enabled.
// Every other build links the stub, where Native reports ErrNotBuilt. The
// pure-Go engine in pkg/zenoh/loopback implements the same interface.
//
// # Threading
//
// Sample callbacks run on threads owned by the engine. CallFunc and DropFunc
// implementations must be safe for concurrent use.
package bindings
