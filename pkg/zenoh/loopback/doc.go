// Package loopback provides an in-process engine for testing and examples.
//
// Engine implements the same call surface as the zenoh-c bridge, so a
// zenoh.Library built on it exercises exactly the ownership protocol the
// native library would: values live in blocks handed out by Alloc, moved
// values leave gravestones behind, and each subscriber is served by its own
// delivery goroutine that the engine owns.
//
// # Usage
//
//	eng := loopback.New()
//	defer eng.Shutdown()
//
//	lib, _ := zenoh.NewLibrary(zenoh.WithEngine(eng))
//	sess, _ := lib.Open(nil)
//	defer sess.Close()
//
// Sessions opened on the same Engine see each other's publications, which
// is enough to run publisher and subscriber demos in one process.
//
// # Accounting
//
// The engine counts what happens to every block so tests can assert on the
// protocol rather than on side effects:
//
//   - Constructed(kind): successful constructors
//   - Drops(kind): destructor calls that destroyed a live value
//   - LiveObjects(kind): values currently held in blocks
//   - LiveBlocks(): blocks allocated and not yet freed
//
// Freeing a block twice, or touching a freed block, panics.
//
// # Fault Injection
//
// Fail arms a one-shot failure for the next call of an operation:
//
//	eng.Fail(loopback.OpPut, -3) // next put returns Z_EIO
//
// Moved inputs are still consumed when an injected failure fires.
//
// # Limitations
//
// The engine routes samples between sessions of one Engine only:
//   - No network transport, discovery or routing
//   - Key expressions support "*" and "**" chunks but not "$*"
//   - Reliability options are accepted and ignored
//   - Not suitable for production use
package loopback
