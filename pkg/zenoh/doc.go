// Package zenoh is a Go binding for the zenoh publish/subscribe engine.
//
// The engine is reached through a C ABI in which every resource is a raw
// memory block used in one of three modes: owned (the holder must release it
// exactly once), loaned (a borrowed view that is never released) and moved
// (handed to a call that takes over release). This package enforces that
// protocol at runtime so misuse surfaces as an error instead of a double
// free inside the engine.
//
// # Getting Started
//
//	lib, err := zenoh.NewLibrary()            // native zenoh-c, build tag zenohc
//	// or: zenoh.NewLibrary(zenoh.WithEngine(loopback.New()))
//
//	sess, err := lib.Open(nil)                 // default configuration
//	defer sess.Close()
//
//	ke, _ := lib.KeyExpr("demo/example")
//	defer ke.Close()
//
//	pub, _ := sess.DeclarePublisher(ke, nil)
//	_ = pub.PutString("hello")
//
// # Ownership
//
// Every resource type (Config, KeyExpr, Bytes, Encoding, Publisher,
// Subscriber, Session) has an idempotent Close. Calls that consume a
// resource move it: Session.Open consumes its Config, Publisher.Put its
// Bytes, PutOptions.SetEncoding its Encoding. A moved resource is empty for
// good; using it again returns an error matching ErrProtocol and ErrMoved.
// Consumption happens whatever the outcome of the call, so a failed Put
// still leaves its Bytes empty.
//
// Finalizers release resources that were never closed and log a warning
// through the Library logger. They are a safety net, not a release path.
//
// # Subscriptions
//
// A Handler runs on a thread owned by the engine. The *Sample it receives is
// valid only until HandleSample returns; copy what you need with
// Sample.Copy or Sample.Payload. FIFO and Ring hand samples to other
// goroutines:
//
//	fifo := zenoh.NewFIFO(64)
//	sub, _ := sess.DeclareSubscriber(ke, fifo, nil)
//	for r := range fifo.C() {
//	    fmt.Printf("%s: %s\n", r.KeyExpr, r.Payload)
//	}
//
// Subscriber.Close stops new handler calls and returns without waiting for
// a call already in progress, so it is safe to call from the handler
// itself. Subscriber.Done is closed once the engine has released the
// handler. A handler panic is recovered, logged and reported by
// Subscriber.Err.
//
// # Errors
//
// Failures are *Error values classified by ErrorKind. Use errors.Is with the
// kind sentinels (ErrConstruct, ErrOperation, ErrProtocol, ErrCallback,
// ErrSessionState), the cause sentinels (ErrMoved, ErrReleased, ...) or a
// native Result code such as ResultEParse.
//
// # Build Tags
//
// The native engine needs cgo and the zenohc build tag. Without them
// NewLibrary returns ErrNotBuilt unless WithEngine supplies an engine.
package zenoh
