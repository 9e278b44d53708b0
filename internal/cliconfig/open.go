package cliconfig

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/logging"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh/loopback"
)

// NewLogger builds the console logger the commands share.
func (s *Settings) NewLogger() (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(s.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log_level: %w", err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// Runtime is a bound library plus whatever must be torn down with it.
type Runtime struct {
	Library  *zenoh.Library
	Loopback *loopback.Engine
}

// Close shuts the loopback engine down, if one was started.
func (r *Runtime) Close() error {
	if r == nil || r.Loopback == nil {
		return nil
	}
	return r.Loopback.Shutdown()
}

// OpenRuntime binds a Library for s.Engine. EngineAuto tries zenoh-c first
// and falls back to an in-process loopback engine when it is not linked in.
func (s *Settings) OpenRuntime(log *zap.Logger) (*Runtime, error) {
	opts := []zenoh.Option{zenoh.WithLogger(logging.NewZap(log))}

	switch s.Engine {
	case EngineLoopback:
		return s.openLoopback(log, opts)
	case EngineAuto:
		lib, err := zenoh.NewLibrary(opts...)
		if errors.Is(err, zenoh.ErrNotBuilt) {
			log.Warn("zenoh-c not linked in; using in-process loopback engine", zap.Error(err))
			return s.openLoopback(log, opts)
		}
		if err != nil {
			return nil, err
		}
		return &Runtime{Library: lib}, nil
	default:
		lib, err := zenoh.NewLibrary(opts...)
		if err != nil {
			return nil, err
		}
		return &Runtime{Library: lib}, nil
	}
}

func (s *Settings) openLoopback(log *zap.Logger, opts []zenoh.Option) (*Runtime, error) {
	loopback.SetLogger(log.Named("loopback"))
	e := loopback.New()
	lib, err := zenoh.NewLibrary(append(opts, zenoh.WithEngine(e))...)
	if err != nil {
		_ = e.Shutdown()
		return nil, err
	}
	return &Runtime{Library: lib, Loopback: e}, nil
}

// OpenSession opens a session from the zenoh_config file, or from the
// engine default when none is set.
func (s *Settings) OpenSession(lib *zenoh.Library) (*zenoh.Session, error) {
	if s.ZenohConfig == "" {
		return lib.Open(nil)
	}
	cfg, err := lib.ConfigFromFile(s.ZenohConfig)
	if err != nil {
		return nil, fmt.Errorf("zenoh_config %s: %w", s.ZenohConfig, err)
	}
	return lib.Open(cfg)
}
