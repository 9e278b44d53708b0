// Command z_bridge subscribes to a key expression and forwards every sample
// to an AMQP topic exchange. Routing keys are the key expressions with "/"
// replaced by ".".
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hsiuhsiu/zenoh-go/internal/amqpbridge"
	"github.com/hsiuhsiu/zenoh-go/internal/cliconfig"
)

var flagKeys = map[string]string{
	"k":         "key",
	"config":    "zenoh_config",
	"engine":    "engine",
	"amqp":      "amqp.url",
	"exchange":  "amqp.exchange",
	"mandatory": "amqp.mandatory",
	"buffer":    "amqp.buffer_size",
}

func main() {
	fs := flag.NewFlagSet("z_bridge", flag.ExitOnError)
	d := cliconfig.Defaults()
	d.KeyExpr = "demo/**"
	fs.String("k", d.KeyExpr, "key expression to forward")
	fs.String("config", "", "zenoh configuration file")
	fs.String("engine", d.Engine, "engine: native, loopback or auto")
	fs.String("amqp", d.AMQP.URL, "AMQP broker URL")
	fs.String("exchange", d.AMQP.Exchange, "topic exchange to publish to")
	fs.Bool("mandatory", d.AMQP.Mandatory, "publish with the mandatory flag")
	fs.Int("buffer", d.AMQP.BufferSize, "samples queued while the broker is slow")
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
		logger.Fatal("z_bridge failed", zap.Error(err))
	}
}

func run(ctx context.Context, s *cliconfig.Settings, logger *zap.Logger) error {
	rt, err := s.OpenRuntime(logger)
	if err != nil {
		return err
	}
	defer func() { _ = rt.Close() }()
	lib := rt.Library

	conn, err := amqpbridge.Dial(s.AMQP.URL, s.AMQP.Exchange)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logger.Warn("close broker connection", zap.Error(cerr))
		}
	}()

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

	fwd := amqpbridge.NewForwarder(conn.Channel(), s.AMQP.Exchange,
		amqpbridge.WithBufferSize(s.AMQP.BufferSize),
		amqpbridge.WithMandatory(s.AMQP.Mandatory),
		amqpbridge.WithLogger(logger.Named("bridge")),
	)
	sub, err := sess.DeclareSubscriber(ke, fwd, nil)
	if err != nil {
		return fmt.Errorf("declare subscriber: %w", err)
	}

	logger.Info("forwarding",
		zap.String("key_expr", s.KeyExpr),
		zap.String("exchange", s.AMQP.Exchange),
		zap.Stringer("zid", sess.ZID()),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return fwd.Run(gctx) })
	g.Go(func() error {
		select {
		case <-gctx.Done():
		case amqpErr, ok := <-conn.NotifyClose():
			if ok && amqpErr != nil {
				_ = sub.Close()
				return fmt.Errorf("broker closed connection: %w", amqpErr)
			}
		}
		_ = sub.Close()
		return nil
	})

	err = g.Wait()
	sent, failed, dropped := fwd.Stats()
	logger.Info("bridge stopped", zap.Uint64("sent", sent), zap.Uint64("failed", failed), zap.Uint64("dropped", dropped))
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
