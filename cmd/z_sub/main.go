// Command z_sub subscribes to a key expression and prints every sample.
//
// Samples are copied out of the engine's callback into a FIFO and printed
// from the main goroutine.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/internal/cliconfig"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

var flagKeys = map[string]string{
	"k":      "key",
	"config": "zenoh_config",
	"engine": "engine",
}

func main() {
	fs := flag.NewFlagSet("z_sub", flag.ExitOnError)
	d := cliconfig.Defaults()
	d.KeyExpr = "demo/example/**"
	fs.String("k", d.KeyExpr, "key expression to subscribe to")
	fs.String("config", "", "zenoh configuration file")
	fs.String("engine", d.Engine, "engine: native, loopback or auto")
	capacity := fs.Int("capacity", 256, "samples buffered between callback and printer")
	settingsPath := fs.String("settings", "", "YAML settings file")
	_ = fs.Parse(os.Args[1:])

	s, err := cliconfig.Load(*settingsPath, d, fs, flagKeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}
	logger, err := s.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, *capacity, logger); err != nil {
		if cliconfig.Unavailable(err) {
			fmt.Printf("native engine unavailable: %v\n", err)
			return
		}
		logger.Fatal("z_sub failed", zap.Error(err))
	}
}

func run(ctx context.Context, s *cliconfig.Settings, capacity int, logger *zap.Logger) error {
	rt, err := s.OpenRuntime(logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	lib := rt.Library

	sess, err := s.OpenSession(lib)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			logger.Warn("close session", zap.Error(cerr))
		}
	}()

	ke, err := lib.KeyExpr(s.KeyExpr)
	if err != nil {
		return fmt.Errorf("key expression %q: %w", s.KeyExpr, err)
	}
	defer func() { _ = ke.Close() }()

	fifo := zenoh.NewFIFO(capacity)
	logger.Info("declaring subscriber", zap.String("key_expr", s.KeyExpr))
	sub, err := sess.DeclareSubscriber(ke, fifo, nil)
	if err != nil {
		return fmt.Errorf("declare subscriber: %w", err)
	}
	defer func() { _ = sub.Close() }()

	fmt.Println("Press CTRL-C to quit...")
	for {
		r, err := fifo.Recv(ctx)
		if err != nil {
			return nil
		}
		fmt.Printf(">> [Subscriber] Received ('%s': '%s')\n", r.KeyExpr, r.Payload)
	}
}
