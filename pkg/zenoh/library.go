package zenoh

import (
	"context"

	"github.com/hsiuhsiu/zenoh-go/internal/bindings"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/logging"
)

// Engine is the native call surface the binding drives. The zenoh-c bridge
// (build tag zenohc) and loopback.Engine implement it.
type Engine = bindings.ABI

// Option configures a Library.
type Option func(*Library)

// WithEngine selects the engine instead of the linked zenoh-c library.
func WithEngine(e Engine) Option {
	return func(l *Library) { l.abi = e }
}

// WithLogger routes binding logs to logger. The default discards them.
func WithLogger(logger logging.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.log = logger
		}
	}
}

// Library is the entry point of the binding. It pins one engine and one
// logger; every resource created through it uses both.
type Library struct {
	abi Engine
	log logging.Logger
}

// NewLibrary prepares the binding. Without WithEngine it binds to the native
// zenoh-c library and fails with ErrNotBuilt when that is not linked in.
func NewLibrary(opts ...Option) (*Library, error) {
	l := &Library{log: logging.Discard()}
	for _, opt := range opts {
		opt(l)
	}
	if l.abi == nil {
		abi, err := bindings.Native()
		if err != nil {
			return nil, err
		}
		l.abi = abi
	}
	l.log = l.log.With("component", "zenoh")
	return l, nil
}

// EngineVersion reports the version string of the bound engine, or "" if
// the engine does not expose one.
func (l *Library) EngineVersion() string {
	return l.abi.Version()
}

// Logger returns the logger resources created by l report to.
func (l *Library) Logger() logging.Logger {
	return l.log
}

// leaked is run by finalizers that had to release a resource the caller
// never closed.
func (l *Library) leaked(what string) {
	l.log.Warn(context.Background(), "zenoh: resource released by finalizer; call Close", "resource", what)
}
