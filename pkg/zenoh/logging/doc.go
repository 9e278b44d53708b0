// Package logging provides a minimal logging facade for the zenoh binding.
//
// This package defines a Logger interface that wraps a subset of the standard
// library's log/slog functionality. The interface is intentionally small to
// allow applications to provide custom implementations for testing, redaction,
// or integration with existing logging systems.
//
// # Logger Interface
//
// The Logger interface provides context-aware logging methods:
//
//	type Logger interface {
//	    Debug(ctx context.Context, msg string, args ...any)
//	    Info(ctx context.Context, msg string, args ...any)
//	    Warn(ctx context.Context, msg string, args ...any)
//	    Error(ctx context.Context, msg string, args ...any)
//	    With(args ...any) Logger
//	}
//
// # Implementations
//
// The package provides a slog-backed implementation and a zap adapter:
//
//	// Use default logger (slog.Default())
//	logger := logging.New(nil)
//
//	// Route binding logs into an existing zap logger
//	zl, _ := zap.NewProduction()
//	logger = logging.NewZap(zl)
//
//	lib, err := zenoh.NewLibrary(zenoh.WithLogger(logger))
//
// Discard returns a Logger that drops everything, which is what the binding
// uses when no logger is configured.
//
// # Context Attributes
//
// ContextWith attaches attributes to a context; both implementations add
// them to every record logged with that context. The binding tags session
// records with the session id this way.
//
// # Redaction Support
//
// Payloads are application data and are never logged by the binding. Code
// that wants to record that a payload existed can use Redacted:
//
//	logger.Debug(ctx, "sample received", "key_expr", ke, logging.Redacted("payload"))
//	// Logs: payload="[redacted]"
//
// # Threading
//
// Subscriber handlers run on engine-owned threads, so every Logger passed to
// the binding must be safe for concurrent use. Both bundled implementations
// are.
package logging
