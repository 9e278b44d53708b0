// Command z_pub declares a publisher and puts a numbered payload on a key
// expression at a fixed interval.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/internal/cliconfig"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

var flagKeys = map[string]string{
	"k":      "key",
	"p":      "payload",
	"n":      "count",
	"i":      "interval",
	"e":      "encoding",
	"config": "zenoh_config",
	"engine": "engine",
}

func main() {
	fs := flag.NewFlagSet("z_pub", flag.ExitOnError)
	d := cliconfig.Defaults()
	fs.String("k", d.KeyExpr, "key expression to publish on")
	fs.String("p", d.Payload, "payload prefix")
	fs.Int("n", d.Count, "number of puts; 0 publishes until interrupted")
	fs.Duration("i", d.Interval, "interval between puts")
	fs.String("e", d.Encoding, "payload encoding, e.g. text/plain")
	fs.String("config", "", "zenoh configuration file")
	fs.String("engine", d.Engine, "engine: native, loopback or auto")
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

	if err := run(ctx, s, logger); err != nil {
		if cliconfig.Unavailable(err) {
			fmt.Printf("native engine unavailable: %v\n", err)
			return
		}
		logger.Fatal("z_pub failed", zap.Error(err))
	}
}

func run(ctx context.Context, s *cliconfig.Settings, logger *zap.Logger) error {
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

	opts := &zenoh.PublisherOptions{}
	if s.Encoding != "" {
		enc, err := lib.Encoding(s.Encoding)
		if err != nil {
			return fmt.Errorf("encoding %q: %w", s.Encoding, err)
		}
		defer func() { _ = enc.Close() }()
		opts.Encoding = enc
	}

	logger.Info("declaring publisher", zap.String("key_expr", s.KeyExpr), zap.Stringer("zid", sess.ZID()))
	pub, err := sess.DeclarePublisher(ke, opts)
	if err != nil {
		return fmt.Errorf("declare publisher: %w", err)
	}
	defer func() { _ = pub.Close() }()

	ticker := time.NewTicker(max(s.Interval, time.Millisecond))
	defer ticker.Stop()

	for idx := 0; s.Count == 0 || idx < s.Count; idx++ {
		if idx > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
			}
		}
		buf := fmt.Sprintf("[%4d] %s", idx, s.Payload)
		fmt.Printf("Putting Data ('%s': '%s')...\n", s.KeyExpr, buf)
		if err := pub.PutString(buf); err != nil {
			return fmt.Errorf("put: %w", err)
		}
	}
	return nil
}
