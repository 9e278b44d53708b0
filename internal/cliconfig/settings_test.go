package cliconfig

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hsiuhsiu/zenoh-go/pkg/zenoh"
)

var testBindings = map[string]string{
	"k": "key",
	"n": "count",
	"i": "interval",
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func newFlags(t *testing.T, args ...string) *flag.FlagSet {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.String("k", "ignored/default", "")
	fs.Int("n", 0, "")
	fs.Duration("i", time.Second, "")
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadDefaults(t *testing.T) {
	s, err := Load("", Defaults(), newFlags(t), testBindings)
	require.NoError(t, err)
	assert.Equal(t, Defaults().KeyExpr, s.KeyExpr)
	assert.Equal(t, time.Second, s.Interval)
	assert.Equal(t, EngineNative, s.Engine)
	assert.Equal(t, "zenoh", s.AMQP.Exchange)
}

func TestFileThenExplicitFlags(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	yaml := "key: from/file\ncount: 3\ninterval: 250ms\nengine: loopback\namqp:\n  exchange: samples\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "settings.yaml"), []byte(yaml), 0o600))

	s, err := Load("settings.yaml", Defaults(), newFlags(t, "-n", "7"), testBindings)
	require.NoError(t, err)

	// The unset -k flag keeps the file's value even though it has its own default.
	assert.Equal(t, "from/file", s.KeyExpr)
	assert.Equal(t, 7, s.Count)
	assert.Equal(t, 250*time.Millisecond, s.Interval)
	assert.Equal(t, EngineLoopback, s.Engine)
	assert.Equal(t, "samples", s.AMQP.Exchange)
	assert.Equal(t, Defaults().AMQP.URL, s.AMQP.URL)
}

func TestLoadRejectsEscapingPath(t *testing.T) {
	chdir(t, t.TempDir())
	_, err := Load("../settings.yaml", Defaults(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes working directory")
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name string
		edit func(*Settings)
	}{
		{"empty key", func(s *Settings) { s.KeyExpr = "" }},
		{"negative count", func(s *Settings) { s.Count = -1 }},
		{"negative interval", func(s *Settings) { s.Interval = -time.Second }},
		{"unknown engine", func(s *Settings) { s.Engine = "remote" }},
		{"bad log level", func(s *Settings) { s.LogLevel = "loud" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Defaults()
			tc.edit(&s)
			require.Error(t, s.Validate())
		})
	}
	s := Defaults()
	require.NoError(t, s.Validate())
}

func TestOpenRuntimeLoopback(t *testing.T) {
	s := Defaults()
	s.Engine = EngineLoopback

	rt, err := s.OpenRuntime(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close()) })
	require.NotNil(t, rt.Loopback)

	sess, err := s.OpenSession(rt.Library)
	require.NoError(t, err)
	assert.Equal(t, zenoh.SessionOpen, sess.State())
	require.NoError(t, sess.Close())
}

func TestOpenRuntimeAutoFallsBack(t *testing.T) {
	s := Defaults()
	s.Engine = EngineAuto

	rt, err := s.OpenRuntime(zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rt.Close()) })
	if rt.Loopback == nil {
		t.Skip("zenoh-c is linked in; no fallback")
	}
	assert.Equal(t, "loopback", rt.Library.EngineVersion())
}
