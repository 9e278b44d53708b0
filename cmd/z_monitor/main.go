// Command z_monitor shows live samples for a key expression in a terminal
// dashboard. With -demo it publishes synthetic sensor readings through an
// in-process loopback engine, so it runs without a zenoh network. When
// stdout is not a terminal it prints one line per sample instead.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/hsiuhsiu/zenoh-go/internal/cliconfig"
	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

var flagKeys = map[string]string{
	"k":      "key",
	"i":      "interval",
	"config": "zenoh_config",
	"engine": "engine",
}

func main() {
	fs := flag.NewFlagSet("z_monitor", flag.ExitOnError)
	d := cliconfig.Defaults()
	d.KeyExpr = "demo/**"
	fs.String("k", d.KeyExpr, "key expression to monitor")
	fs.Duration("i", d.Interval, "demo publish interval")
	fs.String("config", "", "zenoh configuration file")
	fs.String("engine", d.Engine, "engine: native, loopback or auto")
	demo := fs.Bool("demo", false, "publish synthetic samples through the loopback engine")
	history := fs.Int("history", 512, "samples kept on screen")
	settingsPath := fs.String("settings", "", "YAML settings file")
	_ = fs.Parse(os.Args[1:])

	s, err := cliconfig.Load(*settingsPath, d, fs, flagKeys)
	if err != nil {
		fmt.Fprintf(os.Stderr, "settings: %v\n", err)
		os.Exit(2)
	}
	if *demo {
		s.Engine = cliconfig.EngineLoopback
		s.LogLevel = "error"
	}
	logger, err := s.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, s, *demo, *history, logger); err != nil {
		if cliconfig.Unavailable(err) {
			fmt.Printf("native engine unavailable: %v (try -demo)\n", err)
			return
		}
		logger.Fatal("z_monitor failed", zap.Error(err))
	}
}

func run(ctx context.Context, s *cliconfig.Settings, demo bool, history int, logger *zap.Logger) error {
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

	ring := zenoh.NewRing(history)
	sub, err := sess.DeclareSubscriber(ke, ring, nil)
	if err != nil {
		return fmt.Errorf("declare subscriber: %w", err)
	}
	defer func() { _ = sub.Close() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	if demo {
		g.Go(func() error { return publishDemo(ctx, lib, sess, s.Interval) })
	}

	g.Go(func() error {
		defer cancel()
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return printLines(ctx, ring)
		}
		p := tea.NewProgram(newModel(ctx, s.KeyExpr, sess.ZID().String(), ring, history), tea.WithAltScreen(), tea.WithContext(ctx))
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printLines(ctx context.Context, ring *zenoh.Ring) error {
	for {
		r, err := ring.Recv(ctx)
		if err != nil {
			if errors.Is(err, zenoh.ErrHandlerClosed) {
				return nil
			}
			return err
		}
		fmt.Println(formatLine(r))
	}
}
